// Package main provides the entry point for the dirauthd service.
// It runs a web server using the Fiber framework that authenticates
// community platform users against an optional LDAP/Active Directory
// server, falls back to local password authentication, and keeps local
// group memberships in sync with directory group membership on every
// login. The service uses gorm for data persistence and ships an admin
// interface for managing the directory settings.
package main
