package repo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidField — неизвестное поле в запросе (сортировка, фильтр, тело).
	ErrInvalidField = errors.New("invalid field")

	// ErrConstraint — нарушено ограничение БД (внешний ключ, NOT NULL, формат).
	ErrConstraint = errors.New("constraint violation")
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
	pgInvalidDatetime     = "22007"
	pgUndefinedColumn     = "42703"
)

// classify переводит ошибку PostgreSQL в sentinel-ошибку пакета.
// Неизвестные ошибки возвращаются как есть.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation, pgInvalidText, pgInvalidDatetime:
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	case pgUndefinedColumn:
		return fmt.Errorf("%w: %w", ErrInvalidField, err)
	default:
		return err
	}
}
