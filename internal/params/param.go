package params

// Param declares a parameter a step consumes, with an optional default.
type Param struct {
	Name       string
	Default    any
	HasDefault bool
}

// Required declares a parameter that must be bound in the context.
func Required(name string) Param {
	return Param{Name: name}
}

// Optional declares a parameter with a default used when the context has no
// binding for it.
func Optional(name string, def any) Param {
	return Param{Name: name, Default: def, HasDefault: true}
}
