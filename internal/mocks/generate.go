// Package mocks holds gomock mocks for the ports in internal/core.
//
// Regenerate after interface changes with:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/console-api/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=diagram_repository_mock.go github.com/target/console-api/internal/core DiagramRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatcher_mock.go github.com/target/console-api/internal/core Dispatcher
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=broadcaster_mock.go github.com/target/console-api/internal/core Broadcaster
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=preview_signer_mock.go github.com/target/console-api/internal/core PreviewSigner
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=callback_tokens_mock.go github.com/target/console-api/internal/core CallbackTokens
