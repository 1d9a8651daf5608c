package model

import "time"

// DefaultButtonText はボタン文言が未指定のコースに設定される既定値。
const DefaultButtonText = "Inscreva-se"

// Course はランディングページに掲載される講座を表す。
// JSON表現は既存のデータファイルと互換。
type Course struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Category          string    `json:"category"`
	Description       string    `json:"description"`
	ImageURL          string    `json:"imageUrl"`
	CourseURL         string    `json:"courseUrl"`
	Page              string    `json:"page"`
	DownloadURL       string    `json:"downloadUrl,omitempty"`
	ButtonText        string    `json:"buttonText,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	UltimaAtualizacao time.Time `json:"ultimaAtualizacao"`
}

// CourseInput はコース作成・更新時の入力を表す。
type CourseInput struct {
	Title       string `json:"title" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Description string `json:"description" validate:"required"`
	ImageURL    string `json:"imageUrl" validate:"required,url"`
	CourseURL   string `json:"courseUrl" validate:"required,url"`
	Page        string `json:"page" validate:"required"`
	DownloadURL string `json:"downloadUrl" validate:"omitempty,url"`
	ButtonText  string `json:"buttonText" validate:"max=60"`
}
