// Package models contains shared data models used across the MangoSense codebase.
package models
