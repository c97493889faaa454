package span

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// asciiPunct 为固定标点字符集（ASCII 可打印标点）。
const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// 折叠方式。
const (
	FoldNone = "none"
	FoldNFKC = "nfkc"
)

// isPunct 判定词（去除首尾空白后）是否仅由标点构成；空串视为标点。
// fold=true 时先做 NFKC 兼容归一（全角 "！" → "!"）。
func isPunct(word string, fold bool) bool {
	w := strings.TrimSpace(word)
	if fold {
		w = norm.NFKC.String(w)
	}
	for _, r := range w {
		if r > 0x7e || !strings.ContainsRune(asciiPunct, r) {
			return false
		}
	}
	return true
}
