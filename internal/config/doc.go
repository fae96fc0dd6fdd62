// Package config loads the dossier-auth process configuration from the environment,
// after an optional .env file.
package config
