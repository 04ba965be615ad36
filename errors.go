/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Gameplay failures surfaced to a client as a single "error" message.
// Each operation boundary wraps one of these; nothing here is fatal.
var (
	errValidation    = errors.New("invalid input")
	errNotLoggedIn   = errors.New("not logged in")
	errNotFound      = errors.New("player not found")
	errAlreadyQueued = errors.New("already waiting for a match")
	errAlreadyPaired = errors.New("already in a match")
	errNoOpponent    = errors.New("no current opponent")
	errConflict      = errors.New("conflicting match state")
	errPersistence   = errors.New("storage failure")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
