// Package project resolves the developer's project root, collects git
// metadata, and enumerates project files under the layered ignore
// policy. Everything here is read-only with respect to the project.
package project
