// Package rest implements a gitdata.Provider that speaks the hosting
// service's Git data REST API directly over net/http. Requests carry the
// "Authorization: token <token>" header and a fixed User-Agent; bodies are
// encoded with goccy/go-json so identifiers are always quoted JSON strings.
package rest
