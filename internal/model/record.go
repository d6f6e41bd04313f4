package model

import "strings"

// MaxMinutes は1件の記録に保持できる学習時間（分）の上限。
// 同じタイトルへの加算もこの値を超えられない。
const MaxMinutes = 10_000_000

// StudyRecord は学習記録の1件を表す。
// IDはドキュメントストアが挿入時に採番する。未保存の記録ではIDは空。
type StudyRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Minutes int    `json:"time"`
}

// Valid は記録が登録・更新可能な内容かを判定する。
// タイトルが空でなく、学習時間が1以上MaxMinutes以下であること。
func (r StudyRecord) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && r.Minutes > 0 && r.Minutes <= MaxMinutes
}

// AddMinutes はminutesを加算した記録を返す。合計がMaxMinutesを超える場合はfalseを返す。
func (r StudyRecord) AddMinutes(minutes int) (StudyRecord, bool) {
	if minutes < 0 || r.Minutes > MaxMinutes-minutes {
		return r, false
	}
	r.Minutes += minutes
	return r, true
}

// TotalMinutes は記録一覧の学習時間の合計を返す。
func TotalMinutes(records []StudyRecord) int {
	total := 0
	for _, r := range records {
		total += r.Minutes
	}
	return total
}

// FindByTitle はタイトルが完全一致する最初の記録を返す。
func FindByTitle(records []StudyRecord, title string) (StudyRecord, bool) {
	for _, r := range records {
		if r.Title == title {
			return r, true
		}
	}
	return StudyRecord{}, false
}
