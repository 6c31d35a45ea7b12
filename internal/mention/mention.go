// Package mention parses @name references out of comment text, resolves them
// against a user directory, and renders highlighted output for display.
package mention

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Token is a raw @name occurrence in a source string. Start is the index of
// the '@' and End is the exclusive end of the name, so text[Start:End] is the
// full "@First Last" run the token covers. Username never includes the '@'.
type Token struct {
	Username string `json:"username"`
	Start    int    `json:"startIndex"`
	End      int    `json:"endIndex"`
}

// Resolved is a Token that matched a directory entry.
type Resolved struct {
	Token
	UserID string `json:"userId"`
}

// ResolverFunc maps a mention username to a user ID. An empty ID means no
// match. Errors are treated the same as no match by Resolve.
type ResolverFunc func(ctx context.Context, username string) (string, error)

// nameChar excludes whitespace and the punctuation that terminates a name run.
const nameChar = `[^\s.,!?;:()\[\]{}@"]`

var (
	basicRe      = regexp.MustCompile(`@(` + nameChar + `+)`)
	secondWordRe = regexp.MustCompile(`^\s+(` + nameChar + `+)`)
)

// Extract scans text for @name tokens, left to right. After each basic
// mention it considers exactly one following word as a possible surname and
// merges it when the word is under 3 characters or starts with an uppercase
// letter. The thresholds are inherited behavior; tests pin them.
func Extract(text string) []Token {
	if strings.TrimSpace(text) == "" {
		return []Token{}
	}

	tokens := []Token{}
	cursor := 0
	for _, loc := range basicRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start < cursor {
			continue
		}

		if m := secondWordRe.FindStringSubmatchIndex(text[end:]); m != nil {
			word := text[end+m[2] : end+m[3]]
			if shouldMergeSecondWord(word) {
				end += m[3]
			}
		}

		username := strings.TrimSpace(text[start+1 : end])
		if username == "" {
			continue
		}
		tokens = append(tokens, Token{Username: username, Start: start, End: end})
		cursor = end
	}
	return tokens
}

// shouldMergeSecondWord applies the two-word name heuristic: short runs are
// assumed to be initials, capitalized runs a surname. Lowercase words of 3+
// characters are treated as ordinary prose.
func shouldMergeSecondWord(word string) bool {
	if utf8.RuneCountInString(word) < 3 {
		return true
	}
	first, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(first)
}

// Resolve looks up every token concurrently and returns, in input order, the
// tokens that resolved to a user. Lookup failures drop the token; they never
// fail the batch.
func Resolve(ctx context.Context, tokens []Token, resolve ResolverFunc) []Resolved {
	if len(tokens) == 0 || resolve == nil {
		return []Resolved{}
	}

	ids := make([]string, len(tokens))
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token Token) {
			defer wg.Done()
			id, err := resolve(ctx, token.Username)
			if err != nil {
				log.Printf("mention: resolve %q: %v", token.Username, err)
				return
			}
			ids[i] = id
		}(i, token)
	}
	wg.Wait()

	resolved := []Resolved{}
	for i, token := range tokens {
		if ids[i] == "" {
			continue
		}
		resolved = append(resolved, Resolved{Token: token, UserID: ids[i]})
	}
	return resolved
}

// UserIDs collapses resolved mentions into the distinct user IDs they refer
// to, keeping first-seen order. Blank IDs are skipped defensively.
func UserIDs(resolved []Resolved) []string {
	ids := []string{}
	seen := make(map[string]struct{}, len(resolved))
	for _, m := range resolved {
		id := strings.TrimSpace(m.UserID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// FormatHTML returns text with every mention span wrapped in a
// <span class="mention"> marker. Spans are applied in ascending Start order
// regardless of input order, and only the recorded [Start,End) span is
// wrapped. With no mentions the input is returned untouched.
func FormatHTML(text string, mentions []Token) string {
	if len(mentions) == 0 {
		return text
	}

	sorted := make([]Token, len(mentions))
	copy(sorted, mentions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	cursor := 0
	for _, m := range sorted {
		if m.Start < cursor || m.Start >= m.End || m.End > len(text) {
			continue
		}
		b.WriteString(text[cursor:m.Start])
		b.WriteString(`<span class="mention">`)
		b.WriteString(text[m.Start:m.End])
		b.WriteString(`</span>`)
		cursor = m.End
	}
	b.WriteString(text[cursor:])
	return b.String()
}
