// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package values

import (
	"os"
	"testing"
)

func Test_DatabaseURI(t *testing.T) {
	t.Setenv(DatabaseURIEnv, "")
	uri, ok := GetDatabaseURI()
	if ok || uri != PlaceholderDatabaseURI {
		t.Errorf("expected placeholder, got %q (%v)", uri, ok)
	}

	t.Setenv(DatabaseURIEnv, "mongodb://db:27017")
	uri, ok = GetDatabaseURI()
	if !ok || uri != "mongodb://db:27017" {
		t.Errorf("expected configured uri, got %q (%v)", uri, ok)
	}
}

func Test_Credentials(t *testing.T) {
	t.Setenv(MongoConfigDBUserNameEnv, "admin")
	t.Setenv(MongoConfigDBPasswordEnv, "")
	os.Unsetenv(MongoConfigDBPasswordEnv)
	if _, _, ok := GetMongoConfigDBCredentials(); ok {
		t.Errorf("credentials must need both user and password")
	}

	t.Setenv(MongoConfigDBPasswordEnv, "secret")
	user, pass, ok := GetMongoConfigDBCredentials()
	if !ok || user != "admin" || pass != "secret" {
		t.Errorf("unexpected credentials %q/%q (%v)", user, pass, ok)
	}
}

func Test_Lookup(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	if got := Lookup(LogLevelEnv, "info"); got != "info" {
		t.Errorf("expected default for empty value, got %q", got)
	}
	t.Setenv(LogLevelEnv, "debug")
	if got := Lookup(LogLevelEnv, "info"); got != "debug" {
		t.Errorf("expected debug, got %q", got)
	}
}
