// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package values

import "os"

const (
	// Environment variable name providing the configuration file path
	ConfigPathEnv = "GOVERNOR_CONFIG"

	// Environment variable name providing the database connection string
	DatabaseURIEnv = "GOVERNOR_DATABASE_URI"

	// Inert connection string used while no real one is configured, it
	// lets the process start while every data operation fails
	PlaceholderDatabaseURI = "mongodb://unconfigured.invalid:27017"

	// Environment variable name providing mongo configdb username
	MongoConfigDBUserNameEnv = "MONGO_CONFIGDB_USERNAME"

	// Environment variable name providing mongo configdb password
	MongoConfigDBPasswordEnv = "MONGO_CONFIGDB_PASSWORD"

	// Environment variable name providing the session signing secret
	SessionSecretEnv = "GOVERNOR_SESSION_SECRET"

	// Environment variable names of the redis backing the shared limiter
	RedisAddrEnv     = "GOVERNOR_REDIS_ADDR"
	RedisPasswordEnv = "GOVERNOR_REDIS_PASSWORD"

	// Environment variable name selecting the limiter backend
	RateLimitBackendEnv = "GOVERNOR_RATE_LIMIT_BACKEND"

	// Environment variable names of the listen addresses
	HTTPAddrEnv = "GOVERNOR_HTTP_ADDR"
	GRPCAddrEnv = "GOVERNOR_GRPC_ADDR"

	// Environment variable name providing the log level
	LogLevelEnv = "GOVERNOR_LOG_LEVEL"

	// Environment variable name enabling tests against a live mongo
	TestMongoURIEnv = "GOVERNOR_TEST_MONGO_URI"
)

// Lookup returns the value of the environment variable, or def when it
// is not set or empty
func Lookup(name, def string) string {
	val, ok := os.LookupEnv(name)
	if !ok || val == "" {
		return def
	}
	return val
}

// GetDatabaseURI returns the configured connection string, or the
// placeholder and false when none is set
func GetDatabaseURI() (string, bool) {
	uri := Lookup(DatabaseURIEnv, "")
	if uri == "" {
		return PlaceholderDatabaseURI, false
	}
	return uri, true
}

// Get configured mongodb credentials, ok is false unless both the user
// and the password are set
func GetMongoConfigDBCredentials() (string, string, bool) {
	user, ok := os.LookupEnv(MongoConfigDBUserNameEnv)
	if !ok {
		return "", "", false
	}
	pass, ok := os.LookupEnv(MongoConfigDBPasswordEnv)
	if !ok {
		return "", "", false
	}
	return user, pass, true
}
