package recomp

// Locale-independent ASCII-only isalpha. Mod ids must validate identically
// regardless of the build environment's locale.
func isAlphaASCII(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnumASCII(c byte) bool {
	return isAlphaASCII(c) || (c >= '0' && c <= '9')
}

// ValidateModID reports whether a string is usable as a mod or dependency id:
// a C-style identifier (ASCII letter or underscore, then ASCII letters,
// digits or underscores), or one of the two reserved dependency names.
func ValidateModID(id string) bool {
	if len(id) == 0 {
		return false
	}
	if id == DependencySelf || id == DependencyBaseRecomp {
		return true
	}
	if !isAlphaASCII(id[0]) && id[0] != '_' {
		return false
	}
	for i := 1; i < len(id); i++ {
		if !isAlnumASCII(id[i]) && id[i] != '_' {
			return false
		}
	}
	return true
}
