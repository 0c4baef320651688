// Package io serializes the challenge graph as JSON.
//
// The format feeds the analyze command's --json export and the local graph
// viewer's API endpoints. It is a one-way snapshot: the graph is rebuilt
// from the workspace sources on every run, so there is no import path.
package io
