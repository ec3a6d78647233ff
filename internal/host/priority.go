package host

// The Host's native priority scale is 0 none, 1-4 high, 5 medium, 6-9 low.
// Tasks use the normalized scale 0 none, 1 low, 5 medium, 9 high.

// priorityToHost maps a normalized priority to the Host scale.
func priorityToHost(p int) int {
	switch {
	case p == 0:
		return 0
	case p <= 3:
		return 9
	case p <= 6:
		return 5
	default:
		return 1
	}
}

// priorityFromHost maps a Host priority to the normalized scale.
func priorityFromHost(p int) int {
	switch {
	case p == 0:
		return 0
	case p >= 6:
		return 1
	case p == 5:
		return 5
	default:
		return 9
	}
}

// priorityLabel converts a Host priority to the label the helper's add verb
// accepts; "" means no priority.
func priorityLabel(p int) string {
	switch {
	case p == 0:
		return ""
	case p <= 4:
		return "high"
	case p == 5:
		return "medium"
	default:
		return "low"
	}
}
