package seal

// TierFor maps a normalized score onto its category label, a fixed step
// function over six ordered bands.
func TierFor(iq int) string {
	switch {
	case iq >= 145:
		return "galaxy_brain"
	case iq >= 130:
		return "genius"
	case iq >= 115:
		return "smart"
	case iq >= 100:
		return "average"
	case iq >= 85:
		return "below_average"
	default:
		return "dumbass"
	}
}

// RoastFor returns the commentary line for a normalized score. Same bands as
// TierFor.
func RoastFor(iq int) string {
	switch {
	case iq >= 145:
		return "Galaxy brain detected. You're actually scary smart. Touch grass immediately."
	case iq >= 130:
		return "Certified genius. You probably corrected your teacher as a kid. Annoying but impressive."
	case iq >= 115:
		return "Above average. Smart enough to know you're not that smart. That's actually smart."
	case iq >= 100:
		return "Perfectly average. The human equivalent of room temperature. Congratulations?"
	case iq >= 85:
		return "Below average. Your brain called. It wants a refund."
	default:
		return "Certified dumbass. If stupidity was an Olympic sport, you'd forget to show up."
	}
}
