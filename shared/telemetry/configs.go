package telemetry

// OrganizationServiceConfig is the telemetry configuration for the organization service
var OrganizationServiceConfig = Config{
	ServiceName:    "organization-service",
	ServiceVersion: "1.0.0",
}

// WithOTLPEndpoint sets the OTLP endpoint and enables export
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	c.Enabled = endpoint != ""
	return c
}

// WithVersion sets the service version for a config
func (c Config) WithVersion(version string) Config {
	c.ServiceVersion = version
	return c
}
