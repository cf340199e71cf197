// Package testutil holds deterministic fixtures shared by package tests:
// a scripted RemoteSource and entry builders.
package testutil
