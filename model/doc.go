// Package model defines the small value types shared across vecscan
// packages, most importantly RecordRef, the page/slot address of a stored
// record.
package model
