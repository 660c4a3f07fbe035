// Package mocks provides mock implementations for testing the taskflow job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Insert, GetByID, Update, AcquireNextDue, CountByState
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/target/taskflow/internal/core JobRepository

// Generate mock for JobAttemptRepository interface from internal/core package.
// This creates MockJobAttemptRepository with methods for all JobAttemptRepository interface methods:
// Insert, ListForJob
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_attempt_repository_mock.go github.com/target/taskflow/internal/core JobAttemptRepository

// Generate mock for UnitOfWork interface from internal/core package.
// This creates MockUnitOfWork with methods for all UnitOfWork interface methods:
// Jobs, Attempts
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=unit_of_work_mock.go github.com/target/taskflow/internal/core UnitOfWork

// Generate mock for TxRunner interface from internal/core package.
// This creates MockTxRunner with methods for all TxRunner interface methods:
// WithinTx
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=tx_runner_mock.go github.com/target/taskflow/internal/core TxRunner

// Generate mock for RetentionRepository interface from internal/core package.
// This creates MockRetentionRepository with methods for all RetentionRepository interface methods:
// ArchiveTerminalJobs, PurgeArchivedJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=retention_repository_mock.go github.com/target/taskflow/internal/core RetentionRepository

// Generate mock for JobNotifier interface from internal/core package.
// This creates MockJobNotifier with methods for all JobNotifier interface methods:
// Notify, Wait
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_notifier_mock.go github.com/target/taskflow/internal/core JobNotifier
