package inventory

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// fingerprintDOM computes a 64-bit SimHash over the document's tag-name
// shingles. Text, attributes and whitespace are ignored, so two pages built
// from the same template fingerprint close together even when their copy
// differs. Returns 0 for input with no tags.
func fingerprintDOM(htmlStr string) uint64 {
	tags := tagSequence(htmlStr)
	if len(tags) == 0 {
		return 0
	}

	shingles := shingle(tags, 3)
	if len(shingles) == 0 {
		// Too few tags for trigrams: hash the raw tag sequence instead.
		shingles = tags
	}

	var vector [64]int
	for _, s := range shingles {
		h := fnv.New64a()
		h.Write([]byte(s))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// hammingDistance counts differing bits between two fingerprints.
func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// tagSequence tokenizes the HTML and collects opening tag names in document
// order.
func tagSequence(htmlStr string) []string {
	tok := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			tags = append(tags, string(name))
		}
	}
}

// shingle joins consecutive n-grams of tokens; nil when there are fewer than
// n tokens.
func shingle(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}
