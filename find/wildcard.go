package find

import "strings"

// dosMatch reports whether name matches the DOS-style wildcard pattern (only '?' and '*' are special; NTFS names
// cannot meaningfully contain '[' or ']' as a class operator, so path.Match's bracket-class support is deliberately
// not exposed here), case-insensitively.
func dosMatch(pattern, name string) bool {
	return dosMatchFold(strings.ToLower(pattern), strings.ToLower(name))
}

// dosMatchFold implements the classic recursive '?'/'*' glob match; both inputs are expected pre-folded.
func dosMatchFold(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// collapse consecutive '*'
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if dosMatchFold(pattern, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pattern, name = pattern[1:], name[1:]
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false
			}
			pattern, name = pattern[1:], name[1:]
		}
	}
	return len(name) == 0
}
