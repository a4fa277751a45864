// Package app composes the staking engine's services into a running
// application.
//
// The package wires the domain services (pool, stakes, withdrawals, accrual,
// treasury) to their stores, registers the background runners with the system
// manager and exposes the assembled Application to cmd/engine and the HTTP
// layer.
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	├── storage/            # Store interfaces, memory and postgres backends
//	├── services/           # Business logic per concern
//	├── httpapi/            # REST handlers, auth/audit middleware
//	├── auth/               # JWT login for the admin surface
//	├── system/             # Lifecycle manager for background services
//	└── metrics/            # Prometheus instrumentation
//
// Business rules live under services/; this package only composes them.
//
// # Adding a New Domain
//
// When adding a new domain (e.g. "rewards"):
//
//  1. Create domain models in internal/app/domain/rewards/
//  2. Add store interfaces to internal/app/storage/interfaces.go
//  3. Implement them in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/rewards/
//  5. Wire it in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/
package app
