package repository

import "errors"

var (
	// ErrDuplicateEmail はメールアドレスが既に登録されていることを示す。
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUserNotFound は対象のユーザーが存在しないことを示す。
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenAlreadyUsed はトークンが既に使用済みであることを示す。
	ErrTokenAlreadyUsed = errors.New("reset token already used")
)
