package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_TypeScript(t *testing.T) {
	src := `import React, { useState } from 'react';
import type { User } from "./types";
import {
  a,
  b,
} from '../shared/ab';
import './styles.css';
const fs = require('fs');

export interface Props { id: string }
export type Mode = 'a' | 'b';
export enum Color { Red }
export default class Widget {}
export function useWidget() {
  const [x] = useState(0);
  try { return x; } catch (e) { throw e; }
}
export { helper as aliasedHelper };
`
	d := Analyze("src/components/Widget.tsx", src)

	assert.Equal(t, []string{"react", "./types", "../shared/ab", "./styles.css", "fs"}, d.Imports)
	assert.Equal(t, []string{"Color", "Mode", "Props", "Widget", "aliasedHelper", "helper", "useWidget"}, d.Exports)
	assert.Equal(t, []string{"Widget"}, d.Classes)
	assert.Equal(t, []string{"Props"}, d.Interfaces)
	assert.Equal(t, []string{"Mode", "Color"}, d.Types)
	assert.Equal(t, []string{"useWidget"}, d.Functions)
	assert.Contains(t, d.Patterns, PatternReactHooks)
	assert.Contains(t, d.Patterns, PatternTryCatch)
	assert.Contains(t, d.Patterns, PatternErrorHandling)
	assert.Contains(t, d.Patterns, PatternClasses)
}

func TestAnalyze_Go(t *testing.T) {
	src := `package store

import "context"

import (
	"fmt"
	gogit "github.com/go-git/go-git/v6"
)

type Store struct{}

type Reader interface{ Read() }

type Mode string

func New() *Store { return &Store{} }

func (s *Store) load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	go func() {}()
	return nil
}
`
	d := Analyze("internal/store/store.go", src)

	assert.Equal(t, []string{"context", "fmt", "github.com/go-git/go-git/v6"}, d.Imports)
	assert.Equal(t, []string{"Mode", "New", "Reader", "Store"}, d.Exports)
	assert.Equal(t, []string{"Store"}, d.Classes)
	assert.Equal(t, []string{"Reader"}, d.Interfaces)
	assert.Equal(t, []string{"Mode"}, d.Types)
	assert.Equal(t, []string{"New", "load"}, d.Functions)
	assert.Contains(t, d.Patterns, PatternErrorReturns)
	assert.Contains(t, d.Patterns, PatternGoroutines)
	assert.Contains(t, d.Patterns, PatternErrorHandling)
}

func TestAnalyze_Python(t *testing.T) {
	src := `from app.models import User
import os, sys

__all__ = ["load"]

class Loader:
    pass

def load():
    pass
`
	d := Analyze("app/loader.py", src)

	assert.Equal(t, []string{"app.models", "os"}, d.Imports)
	assert.Equal(t, []string{"Loader", "load"}, d.Exports)
	assert.Equal(t, []string{"Loader"}, d.Classes)
}

func TestAnalyze_UnknownFile(t *testing.T) {
	d := Analyze("notes.txt", "import x from 'y'")
	assert.Empty(t, d.Imports)
	assert.NotNil(t, d.Imports)
	assert.Empty(t, d.Patterns)
}
