package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается, если алиас или канал не резолвится.
	ErrNotFound = errors.New("not found")
	// ErrEmptyHandle возвращается для каналов без публичного алиаса.
	ErrEmptyHandle = errors.New("private channels not supported")
	// ErrSubscriptionLimit возвращается при превышении лимита подписок.
	ErrSubscriptionLimit = errors.New("subscription limit reached")
	// ErrNotAllowed возвращается пользователям вне списка доступа.
	ErrNotAllowed = errors.New("Sorry, you are not allowed to use this bot 🙅‍♂️. Contact the admin if you want to get the access.")
	// ErrInternal скрывает ошибки хранилища и транспорта от пользователя.
	ErrInternal = errors.New("internal server error")
	// ErrTimeout возвращается, если попытка отправки не уложилась в таймаут.
	ErrTimeout = errors.New("timeout")
)

// NotFoundError уточняет ErrNotFound алиасом.
type NotFoundError struct {
	Handle string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Channel not found: @%s", e.Handle)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// SubscriptionLimitError уточняет ErrSubscriptionLimit значением лимита.
type SubscriptionLimitError struct {
	Max int
}

func (e *SubscriptionLimitError) Error() string {
	return fmt.Sprintf("Subscription limit reached (max %d channels)", e.Max)
}

func (e *SubscriptionLimitError) Unwrap() error { return ErrSubscriptionLimit }

// SummarizerError оборачивает ошибку провайдера суммаризации.
type SummarizerError struct {
	Provider string
	Err      error
}

func (e *SummarizerError) Error() string {
	return fmt.Sprintf("summarizer %s: %v", e.Provider, e.Err)
}

func (e *SummarizerError) Unwrap() error { return e.Err }
