package models

// DefaultNames returns the stock defect categories in on-disk column order.
func DefaultNames() []string {
	return []string{
		"Defective Solder",
		"Missing Components",
		"Wrong Parts",
		"Reversed Components",
		"Damaged Components",
		"Damaged PCB",
		"Loose Hardware",
		"Wrong Hardware",
		"Poor Workmanship",
		"Improperly Masked",
		"Improperly Cleaned",
		"Wiring Defects",
	}
}
