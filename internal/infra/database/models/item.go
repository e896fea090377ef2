package models

import (
	"time"
)

// ItemRecord mirrors one registry row for SQL consumers.
type ItemRecord struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text"`
	Office       string    `json:"office" gorm:"type:text;index;not null"`
	Category     string    `json:"category" gorm:"type:text;index"`
	Subcategory  string    `json:"subcategory" gorm:"type:text"`
	Name         string    `json:"name" gorm:"type:text"`
	Description  string    `json:"description" gorm:"type:text"`
	Color        string    `json:"color" gorm:"type:text"`
	Brand        string    `json:"brand" gorm:"type:text"`
	Condition    string    `json:"condition" gorm:"type:text"`
	FoundDate    string    `json:"foundDate" gorm:"type:text;index"`
	LocationText string    `json:"locationText" gorm:"type:text"`
	Lat          *float64  `json:"lat"`
	Lon          *float64  `json:"lon"`
	Returned     bool      `json:"returned" gorm:"not null;default:false;index"`
	SourceID     string    `json:"sourceId" gorm:"type:text"`
	CDate        time.Time `json:"cdate" gorm:"autoCreateTime"`
	MDate        time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

func (ItemRecord) TableName() string {
	return "zgloszenia_zgub"
}
