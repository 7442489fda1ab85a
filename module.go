package dryioc

// Module is a group of registrations applied to a container.
type Module func(c *Container) error

// NewModule creates a new module with the given name and builders.
// Modules are a way to group related service registrations together.
//
// Example:
//
//	var DatabaseModule = dryioc.NewModule("database",
//	    dryioc.AddSingleton(NewDatabaseConnection),
//	    dryioc.AddScoped(NewUserRepository),
//	    dryioc.AddScoped(NewOrderRepository),
//	)
//
//	var AppModule = dryioc.NewModule("app",
//	    DatabaseModule,
//	    dryioc.AddTransient(NewHandler, dryioc.WithKey("users")),
//	)
//
//	err := c.Install(AppModule)
func NewModule(name string, builders ...Module) Module {
	return func(c *Container) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(c); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// Install applies modules to the container in order, stopping at the first
// failure. Registrations made before the failure are kept.
func (c *Container) Install(modules ...Module) error {
	for _, m := range modules {
		if m == nil {
			continue
		}
		if err := m(c); err != nil {
			return err
		}
	}
	return nil
}

// AddSingleton creates a Module registering constructor as a singleton.
func AddSingleton(constructor any, opts ...RegisterOption) Module {
	return addConstructor(constructor, Singleton, opts)
}

// AddScoped creates a Module registering constructor as a scoped service.
// A ScopedTo option among opts binds it to a named scope.
func AddScoped(constructor any, opts ...RegisterOption) Module {
	return addConstructor(constructor, Scoped, opts)
}

// AddTransient creates a Module registering constructor as a transient.
func AddTransient(constructor any, opts ...RegisterOption) Module {
	return addConstructor(constructor, Transient, opts)
}

// AddValue creates a Module registering value as the singleton instance of T.
func AddValue[T any](value T, opts ...RegisterOption) Module {
	return func(c *Container) error {
		return RegisterValue(c, value, opts...)
	}
}

func addConstructor(constructor any, lifetime Lifetime, opts []RegisterOption) Module {
	return func(c *Container) error {
		// The builder's lifetime wins over WithLifetime and ScopedTo; a
		// ScopedTo name is still kept for AddScoped.
		all := append(append([]RegisterOption{}, opts...), WithLifetime(lifetime))
		return RegisterConstructor(c, constructor, all...)
	}
}
