// Package record は検出されたナンバープレートの記録を保存する
package record

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultRecentLimit は最近の記録の既定件数
const DefaultRecentLimit = 10

const dateLayout = "2006-01-02"

var (
	ErrNotFound     = errors.New("記録が見つかりません")
	ErrInvalidInput = errors.New("記録の内容が不正です")
)

// Record は保存された検出記録
type Record struct {
	ID          string    `json:"id"`
	PlateNumber string    `json:"plateNumber"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
	ImageData   string    `json:"imageData,omitempty"`
	Processed   int       `json:"processed"`
	Notes       *string   `json:"notes"`
}

// Input は記録の作成内容
type Input struct {
	PlateNumber string  `json:"plateNumber"`
	Confidence  float64 `json:"confidence"`
	ImageData   string  `json:"imageData,omitempty"`
	Processed   int     `json:"processed"`
	Notes       *string `json:"notes,omitempty"`
}

// Validate は入力値を検証する
func (in Input) Validate() error {
	if strings.TrimSpace(in.PlateNumber) == "" {
		return fmt.Errorf("%w: plateNumber は必須です", ErrInvalidInput)
	}
	if in.Confidence < 0 || in.Confidence > 100 {
		return fmt.Errorf("%w: confidence は0から100の範囲で指定してください: %v", ErrInvalidInput, in.Confidence)
	}
	if in.Processed != 0 && in.Processed != 1 {
		return fmt.Errorf("%w: processed は0か1です: %d", ErrInvalidInput, in.Processed)
	}
	return nil
}

// Stats は記録の集計
type Stats struct {
	Total       int `json:"total"`
	Today       int `json:"today"`
	SuccessRate int `json:"successRate"`
}

// SortKey は一覧の並び順
type SortKey string

const (
	SortByTimestamp   SortKey = "timestamp"   // 新しい順
	SortByPlateNumber SortKey = "plateNumber" // ナンバーの昇順
	SortByConfidence  SortKey = "confidence"  // 信頼度の高い順
)

// ListOptions は一覧の検索条件
type ListOptions struct {
	// Query はナンバーの部分一致（大文字小文字を区別しない）か、日付 YYYY-MM-DD の部分一致
	Query string
	// Sort が空なら SortByTimestamp
	Sort SortKey
}

// ParseSortKey はクエリ文字列から並び順を決める。空なら SortByTimestamp
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(s); key {
	case "":
		return SortByTimestamp, nil
	case SortByTimestamp, SortByPlateNumber, SortByConfidence:
		return key, nil
	default:
		return "", fmt.Errorf("%w: 不明な並び順です: %q", ErrInvalidInput, s)
	}
}

// matches は記録が検索条件に合うか判定する
func (o ListOptions) matches(rec Record) bool {
	query := strings.TrimSpace(o.Query)
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(rec.PlateNumber), strings.ToLower(query)) {
		return true
	}
	return strings.Contains(rec.Timestamp.Local().Format(dateLayout), query)
}

// sortRecords は並び順に従って並べ替える。同順位は新しい順
func sortRecords(records []Record, key SortKey) {
	newer := func(a, b Record) bool {
		if a.Timestamp.Equal(b.Timestamp) {
			return a.ID < b.ID
		}
		return a.Timestamp.After(b.Timestamp)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch key {
		case SortByPlateNumber:
			if a.PlateNumber != b.PlateNumber {
				return a.PlateNumber < b.PlateNumber
			}
		case SortByConfidence:
			if a.Confidence != b.Confidence {
				return a.Confidence > b.Confidence
			}
		}
		return newer(a, b)
	})
}

// Store は記録の保存先
type Store interface {
	Create(ctx context.Context, in Input) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	// List は条件に合う記録を opts.Sort の順に返す
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	Today(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// DataURL はJPEG画像をdata URLに変換する
func DataURL(mimeType string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// successRate は処理済み記録の割合を百分率に丸める
func successRate(processed, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(processed)/float64(total)*100 + 0.5)
}

// startOfDay はローカル時刻の当日0時を返す
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
