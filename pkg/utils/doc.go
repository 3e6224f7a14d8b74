// Package utils provides common utility functions for the retrievo project.
package utils
