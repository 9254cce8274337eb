package contracts

// DomainKernel is the single access point through which domain code reaches
// infrastructure. It is assembled once at process start and only read
// afterwards.
//
// Optional collaborators are returned comma-ok style: the boolean is false
// when the collaborator was not configured, and the returned value is nil.
type DomainKernel interface {
	// AppRoot returns the absolute application root path.
	AppRoot() string
	// DomainRoot returns the absolute root path of the domain sources.
	DomainRoot() string

	// Env returns a single configuration value. Missing keys yield (nil, false).
	Env(key string) (any, bool)
	// EnvAll returns a copy of the whole configuration mapping.
	EnvAll() map[string]any

	Factory() (Factory, bool)
	Cache() (Cache, bool)
	ConnectionPool() (ConnectionPool, bool)
	Logger() (Logger, bool)
	Message() (MessagingService, bool)

	// Resources is always non-nil.
	Resources() ResourceRegistry
}
