// Package jsonpath evaluates the dotted-path predicates that back
// domain.ParamRestriction, compiling each path once into a jq filter via
// github.com/itchyny/gojq and running it against arbitrary decoded JSON.
package jsonpath
