// Package alerts runs the periodic sweep that drives clock-based state
// transitions and raises the notifications attached to them.
//
// The sweep is state-based, not edge-triggered: every tick examines the
// stored state of each candidate process and creates whatever alert that
// state demands but does not yet have open. A tick that crashes halfway is
// therefore recovered by the next tick, and running two ticks back to back
// creates nothing twice.
package alerts
