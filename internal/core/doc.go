// Package core is the wallet engine: a state.Store with an engine tree
// attached that drives login convergence, storage sync, currency wallets and
// exchange rates, and exposes the results to host code as bridge proxies.
//
// TREE:
//
//	root
//	├── accounts    Collection over logged-in account ids
//	│   └── <id>
//	│       ├── api              login convergence, sync task, bridged Account
//	│       ├── watcher          refreshes the Account proxy on state changes
//	│       └── currencyWallets  the account's active wallet proxies
//	├── currency
//	│   ├── plugins     resolves currency plugins once
//	│   └── wallets     Collection over every active wallet id
//	└── exchange
//	    ├── plugins     resolves rate plugins once
//	    └── update      rate poller
//
// Every fault in the tree, every failed background run and every panicking
// host callback reaches the single error sink, which forwards it to
// Callbacks.OnError and emits "error" on the Context proxy.
package core
