// Package daemonrun wires the daemon process together: instance lock, run
// log, ledger, backend selection, sink choice, and the ingestion source for
// the selected mode. Shutdown stops ingestion first and drains the pipeline
// before the ledger closes.
package daemonrun
