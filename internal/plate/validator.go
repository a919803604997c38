// Package plate はOCR結果からナンバープレート候補を選び、受理判定を行う
package plate

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"platescan/internal/ocr"
)

var (
	ErrNoPlateDetected = errors.New("ナンバープレートが検出されませんでした")
	ErrLowConfidence   = errors.New("認識の信頼度が低すぎます")
)

var platePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{1,3}[0-9]{1,4}$`),     // ABC123
	regexp.MustCompile(`^[0-9]{1,3}[A-Z]{1,3}$`),     // 123ABC
	regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{2}$`), // AB12CD
	regexp.MustCompile(`^[A-Z0-9]{5,8}$`),            // 汎用
}

// Candidate はプレート番号の候補
type Candidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Validator は候補選択と受理判定のしきい値
type Validator struct {
	// WordConfidence を超える単語だけを候補にする
	WordConfidence float64
	MinLength      int
	MinConfidence  float64
}

// DefaultValidator は既定のしきい値を返す
func DefaultValidator() Validator {
	return Validator{
		WordConfidence: 60,
		MinLength:      3,
		MinConfidence:  70,
	}
}

// Normalize は大文字化し、英数字以外を取り除く
func Normalize(text string) string {
	upper := strings.ToUpper(text)
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsLikelyPlate は正規化後の文字列がプレートの形をしているか判定する
func IsLikelyPlate(text string) bool {
	cleaned := Normalize(text)
	if len(cleaned) < 3 {
		return false
	}
	for _, pattern := range platePatterns {
		if pattern.MatchString(cleaned) {
			return true
		}
	}
	return false
}

// Select は認識結果から最も確からしい候補を選ぶ
// 条件を満たす単語がなければ全文を正規化したものを返す
func (v Validator) Select(output *ocr.Output) Candidate {
	if output == nil {
		return Candidate{}
	}

	words := make([]ocr.Word, 0, len(output.Words))
	for _, w := range output.Words {
		if w.Confidence > v.WordConfidence && IsLikelyPlate(w.Text) {
			words = append(words, w)
		}
	}

	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Confidence > words[j].Confidence
	})

	if len(words) > 0 {
		return Candidate{
			Text:       Normalize(words[0].Text),
			Confidence: words[0].Confidence,
		}
	}

	return Candidate{
		Text:       Normalize(output.Text),
		Confidence: output.Confidence,
	}
}

// Check は候補を受理するか判定する。長さを先に確認する
// 信頼度は丸めずに MinConfidence と比較する
func (v Validator) Check(c Candidate) error {
	if len(c.Text) < v.MinLength {
		return ErrNoPlateDetected
	}
	if c.Confidence < v.MinConfidence {
		return ErrLowConfidence
	}
	return nil
}
