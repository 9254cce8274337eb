// Package contracts declares the interfaces shared between the domain kernel,
// bounded-context handlers and the infrastructure adapters that back them.
//
// Nothing in this package holds state. Implementations live in pkg/kernel,
// pkg/resource and internal/adapters; mocks for tests live in
// pkg/contracts/mocks.
package contracts

//go:generate mockgen -source=logger.go -destination=mocks/logger.go -package=mocks Logger
//go:generate mockgen -source=cache.go -destination=mocks/cache.go -package=mocks Cache
//go:generate mockgen -source=messaging.go -destination=mocks/messaging.go -package=mocks MessagingService
