package calls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, content, language string) []CallSite {
	t.Helper()
	sites, err := Extract(context.Background(), content, language)
	require.NoError(t, err)
	return sites
}

func hasSite(sites []CallSite, name string, callType CallType) bool {
	for _, s := range sites {
		if s.CalleeName == name && s.Type == callType {
			return true
		}
	}
	return false
}

func TestExtractDirectCalls(t *testing.T) {
	sites := extract(t, "function test() { foo(); bar(1, 2); }", "typescript")
	assert.True(t, hasSite(sites, "foo", CallTypeCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "bar", CallTypeCall), "got: %+v", sites)
}

func TestExtractMethodCalls(t *testing.T) {
	sites := extract(t, "obj.method(); foo();", "typescript")
	assert.True(t, hasSite(sites, "method", CallTypeMethodCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "foo", CallTypeCall), "got: %+v", sites)
}

func TestExtractConstructors(t *testing.T) {
	sites := extract(t, "new Foo(); new Bar(1, 2);", "typescript")
	assert.True(t, hasSite(sites, "Foo", CallTypeConstructor), "got: %+v", sites)
	assert.True(t, hasSite(sites, "Bar", CallTypeConstructor), "got: %+v", sites)
}

func TestExtractImports(t *testing.T) {
	code := `
import { foo, bar } from 'module1';
import React from 'react';
import * as utils from './utils';
`
	sites := extract(t, code, "typescript")

	assert.True(t, hasSite(sites, "foo", CallTypeImport), "got: %+v", sites)
	assert.True(t, hasSite(sites, "bar", CallTypeImport), "got: %+v", sites)
	assert.True(t, hasSite(sites, "React", CallTypeImport), "got: %+v", sites)
	assert.True(t, hasSite(sites, "utils", CallTypeImport), "got: %+v", sites)
}

func TestLineColumnNumbers(t *testing.T) {
	sites := extract(t, "foo();\nbar();", "typescript")

	var foo, bar *CallSite
	for i := range sites {
		switch sites[i].CalleeName {
		case "foo":
			foo = &sites[i]
		case "bar":
			bar = &sites[i]
		}
	}

	require.NotNil(t, foo)
	assert.Equal(t, uint32(1), foo.Line)
	assert.Equal(t, uint32(0), foo.Column)

	require.NotNil(t, bar)
	assert.Equal(t, uint32(2), bar.Line)
	assert.Equal(t, uint32(0), bar.Column)
}

func TestJavaScriptSupport(t *testing.T) {
	sites := extract(t, "console.log('test'); alert('hi');", "javascript")
	assert.True(t, hasSite(sites, "log", CallTypeMethodCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "alert", CallTypeCall), "got: %+v", sites)
}

func TestPythonCalls(t *testing.T) {
	sites := extract(t, "print('hello')\nlen([1, 2, 3])\nobj.method()\nself.foo()", "python")
	assert.True(t, hasSite(sites, "print", CallTypeCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "len", CallTypeCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "method", CallTypeMethodCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "foo", CallTypeMethodCall), "got: %+v", sites)
}

func TestPythonImports(t *testing.T) {
	sites := extract(t, "import os\nfrom pathlib import Path", "python")
	assert.True(t, hasSite(sites, "os", CallTypeImport), "got: %+v", sites)
	assert.True(t, hasSite(sites, "Path", CallTypeImport), "got: %+v", sites)
}

func TestGoCalls(t *testing.T) {
	sites := extract(t, "package main\nfunc main() { foo(); fmt.Println(\"hello\") }", "go")
	assert.True(t, hasSite(sites, "foo", CallTypeCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "Println", CallTypeMethodCall), "got: %+v", sites)
}

func TestRustCalls(t *testing.T) {
	sites := extract(t, "fn main() { foo(); bar(1, 2); self.baz(); obj.method(); }", "rust")
	assert.True(t, hasSite(sites, "foo", CallTypeCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "bar", CallTypeCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "baz", CallTypeMethodCall), "got: %+v", sites)
	assert.True(t, hasSite(sites, "method", CallTypeMethodCall), "got: %+v", sites)
}

func TestUnsupportedLanguage(t *testing.T) {
	sites := extract(t, "<html><body>hello</body></html>", "html")
	assert.Empty(t, sites)

	sites = extract(t, "puts 'hello'", "ruby")
	assert.Empty(t, sites)
}
