package models

import (
	"time"

	"gorm.io/datatypes"
)

// ThresholdType selects how a CardPriceAlert is evaluated.
type ThresholdType string

const (
	ThresholdAboveValue    ThresholdType = "ABOVE_VALUE"
	ThresholdBelowValue    ThresholdType = "BELOW_VALUE"
	ThresholdPercentChange ThresholdType = "PERCENT_CHANGE"
)

// NotificationMethod says how a triggered alert reaches its owner.
type NotificationMethod string

const (
	NotifyInApp NotificationMethod = "IN_APP"
	NotifyEmail NotificationMethod = "EMAIL"
	NotifyNone  NotificationMethod = "NONE"
)

// CardPriceAlert is a user-defined price threshold.
// ThresholdValue is a price for ABOVE/BELOW and a percentage for PERCENT_CHANGE.
type CardPriceAlert struct {
	ID                 uint               `json:"id" gorm:"primaryKey"`
	UserID             string             `json:"user_id" gorm:"index;not null"` // External user ID
	CardID             uint               `json:"card_id" gorm:"index;not null"`
	ThresholdType      ThresholdType      `json:"threshold_type" gorm:"type:varchar(32);not null"`
	ThresholdValue     float64            `json:"threshold_value" gorm:"not null"`
	PercentWindowHours *int               `json:"percent_window_hours,omitempty"`
	NotificationMethod NotificationMethod `json:"notification_method" gorm:"type:varchar(16);not null;default:'IN_APP'"`
	IsActive           bool               `json:"is_active" gorm:"default:true;index"`
	Timestamps

	Card Card `json:"card,omitempty" gorm:"foreignKey:CardID"`
}

// CardPriceAlertLog records one triggered evaluation. Append-only.
type CardPriceAlertLog struct {
	ID             string        `json:"id" gorm:"primaryKey"`
	AlertID        uint          `json:"alert_id" gorm:"index;not null"`
	CardID         uint          `json:"card_id" gorm:"index;not null"`
	UserID         string        `json:"user_id" gorm:"index"`
	ThresholdType  ThresholdType `json:"threshold_type" gorm:"type:varchar(32);not null"`
	ThresholdValue float64       `json:"threshold_value"`
	TriggerPrice   float64       `json:"trigger_price"`
	PreviousPrice  *float64      `json:"previous_price,omitempty"`
	PercentChange  *float64      `json:"percent_change,omitempty"`
	CreatedAt      time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

// NotificationTypePriceAlert marks notifications produced by the alert evaluator.
const NotificationTypePriceAlert = "PRICE_ALERT"

// AdminNotification is an in-app notification row. Append-only.
type AdminNotification struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"index"`
	Type      string         `json:"type" gorm:"type:varchar(32);not null;index"`
	Title     string         `json:"title" gorm:"not null"`
	Message   string         `json:"message" gorm:"type:text;not null"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}
