package state

// reduceWallets handles the currency wallet list. Updates to unknown wallet
// ids are dropped; identical entries keep their previous pointers.
func reduceWallets(prev *Table[*CurrencyWallet], a Action) *Table[*CurrencyWallet] {
	switch a.Type {
	case ActionCurrencyWalletAdded:
		p, ok := payloadAs[CurrencyWalletAddedPayload](a)
		if !ok || p.WalletID == "" {
			return prev
		}
		if old, ok := prev.Get(p.WalletID); ok &&
			old.AccountID == p.AccountID && old.Type == p.Type && old.PluginName == p.PluginName {
			return prev
		}
		return prev.Set(p.WalletID, &CurrencyWallet{
			ID:         p.WalletID,
			AccountID:  p.AccountID,
			Type:       p.Type,
			PluginName: p.PluginName,
			Name:       p.Name,
			Txs:        &Table[*Transaction]{},
			Files:      &Table[*WalletFile]{},
		})

	case ActionCurrencyWalletNameSet:
		p, ok := payloadAs[CurrencyWalletNamePayload](a)
		if !ok {
			return prev
		}
		return updateWallet(prev, p.WalletID, func(w *CurrencyWallet) bool {
			if w.Name == p.Name {
				return false
			}
			w.Name = p.Name
			return true
		})

	case ActionCurrencyWalletTxsAdded:
		p, ok := payloadAs[CurrencyWalletTxsPayload](a)
		if !ok {
			return prev
		}
		return updateWallet(prev, p.WalletID, func(w *CurrencyWallet) bool {
			txs := w.Txs
			for _, tx := range p.Txs {
				if old, ok := txs.Get(tx.TxID); ok && *old == tx {
					continue
				}
				tx := tx
				txs = txs.Set(tx.TxID, &tx)
			}
			if txs == w.Txs {
				return false
			}
			w.Txs = txs
			return true
		})

	case ActionCurrencyWalletFileSet:
		p, ok := payloadAs[CurrencyWalletFilePayload](a)
		if !ok {
			return prev
		}
		return updateWallet(prev, p.WalletID, func(w *CurrencyWallet) bool {
			file := WalletFile{TxID: p.TxID, JSON: p.JSON}
			if old, ok := w.Files.Get(p.TxID); ok && *old == file {
				return false
			}
			w.Files = w.Files.Set(p.TxID, &file)
			return true
		})

	case ActionCurrencyWalletFilesSet:
		p, ok := payloadAs[CurrencyWalletFilesPayload](a)
		if !ok {
			return prev
		}
		return updateWallet(prev, p.WalletID, func(w *CurrencyWallet) bool {
			files := recycleFiles(w.Files, p.Files)
			if files == w.Files {
				return false
			}
			w.Files = files
			return true
		})

	case ActionLogout:
		p, ok := payloadAs[LogoutPayload](a)
		if !ok {
			return prev
		}
		return prev.DeleteWhere(func(_ string, w *CurrencyWallet) bool {
			return w.AccountID == p.AccountID
		})
	}
	return prev
}

func updateWallet(prev *Table[*CurrencyWallet], id string, fn func(*CurrencyWallet) bool) *Table[*CurrencyWallet] {
	old, ok := prev.Get(id)
	if !ok {
		return prev
	}
	w := *old
	if !fn(&w) {
		return prev
	}
	return prev.Set(id, &w)
}

// recycleFiles replaces the file table wholesale, reusing the old pointer for
// every entry whose content is unchanged. If the result matches old entry for
// entry, old itself is returned.
func recycleFiles(old *Table[*WalletFile], files []WalletFile) *Table[*WalletFile] {
	next := &Table[*WalletFile]{byID: make(map[string]*WalletFile, len(files))}
	same := old.Len() == len(files)

	for i, f := range files {
		if next.has(f.TxID) {
			same = false
		}
		var entry *WalletFile
		if prior, ok := old.Get(f.TxID); ok && *prior == f {
			entry = prior
		} else {
			f := f
			entry = &f
			same = false
		}
		if !next.has(f.TxID) {
			next.ids = append(next.ids, f.TxID)
		}
		next.byID[f.TxID] = entry
		if same && old.ids[i] != f.TxID {
			same = false
		}
	}

	if same {
		return old
	}
	return next
}
