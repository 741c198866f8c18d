package model

// AllUnits is the catalog sentinel for "every unit of the subject".
const AllUnits = "All Units"

// Subjects lists the closed subject catalog in display order.
var Subjects = []Subject{SubjectChemistry, SubjectBiology, SubjectPhysics, SubjectCalculus}

// StandardUnits are the numbered units every subject offers.
var StandardUnits = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}

// UnitsFor returns the unit choices for a request type. Study guides are
// per numbered unit; answer keys may also target AllUnits.
func UnitsFor(t RequestType) []string {
	if t == TypeAnswerKey {
		units := make([]string, 0, len(StandardUnits)+1)
		units = append(units, StandardUnits...)
		return append(units, AllUnits)
	}
	return StandardUnits
}

func validSubject(s Subject) bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

func validUnit(t RequestType, unit string) bool {
	for _, u := range UnitsFor(t) {
		if u == unit {
			return true
		}
	}
	return false
}
