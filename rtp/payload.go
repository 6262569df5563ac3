package rtp

// DefaultPayloadType returns the conventional dynamic payload-type number
// this engine assigns to an encoding when none is specified by a caller:
// 96 for L16, 97 for L24. Other encodings have no engine-assigned default.
func DefaultPayloadType(encodingName string) (pt uint8, ok bool) {
	switch encodingName {
	case "L16":
		return 96, true
	case "L24":
		return 97, true
	default:
		return 0, false
	}
}
