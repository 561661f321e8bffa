// Package filter classifies user-submitted text against a fixed block-list.
// The same rule set gates new messages and replies.
package filter

import "strings"

// blockList is the fixed set of terms the relay refuses to carry. Matching is
// case-insensitive substring, so inflections of a blocked word are caught too.
var blockList = []string{
	"idiota",
	"imbecil",
	"otario",
	"otário",
	"otaria",
	"otária",
	"babaca",
	"desgraça",
	"vagabundo",
	"vagabunda",
	"arrombado",
	"corno",
	"merda",
	"bosta",
	"puta",
	"caralho",
	"porra",
	"fdp",
	"vai se foder",
	"vsf",
	"krl",
}

// IsOffensive reports whether the text contains a blocked term. Pure function;
// safe for concurrent use.
func IsOffensive(text string) bool {
	lowered := strings.ToLower(text)
	for _, term := range blockList {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
