package audit

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Match indices are built once per reconciliation run and read-only after
// that. Records are bucketed by timestamp second so a tolerance-window scan
// costs O(window seconds + candidates) instead of a pass over the whole
// input. Window scans return candidates in ascending timestamp order; ties
// keep input order.

// ReceiptIndex holds fiscal receipts keyed by machine and timestamp bucket
type ReceiptIndex struct {
	byMachine map[string]map[int64][]*FiscalReceipt
}

// NewReceiptIndex builds a receipt index over the given records
func NewReceiptIndex(receipts []FiscalReceipt) *ReceiptIndex {
	idx := &ReceiptIndex{byMachine: make(map[string]map[int64][]*FiscalReceipt)}
	for i := range receipts {
		r := &receipts[i]
		buckets, ok := idx.byMachine[r.MachineID]
		if !ok {
			buckets = make(map[int64][]*FiscalReceipt)
			idx.byMachine[r.MachineID] = buckets
		}
		sec := r.Timestamp.Unix()
		buckets[sec] = append(buckets[sec], r)
	}
	return idx
}

// Within returns the machine's receipts with timestamps in [from, to]
func (idx *ReceiptIndex) Within(machineID string, from, to time.Time) []*FiscalReceipt {
	buckets, ok := idx.byMachine[machineID]
	if !ok {
		return nil
	}
	var out []*FiscalReceipt
	for sec := from.Unix(); sec <= to.Unix(); sec++ {
		for _, r := range buckets[sec] {
			if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// SaleIndex holds sales keyed by machine and timestamp bucket
type SaleIndex struct {
	byMachine map[string]map[int64][]*Sale
}

// NewSaleIndex builds a sale index over the given records
func NewSaleIndex(sales []Sale) *SaleIndex {
	idx := &SaleIndex{byMachine: make(map[string]map[int64][]*Sale)}
	for i := range sales {
		s := &sales[i]
		buckets, ok := idx.byMachine[s.MachineID]
		if !ok {
			buckets = make(map[int64][]*Sale)
			idx.byMachine[s.MachineID] = buckets
		}
		sec := s.Timestamp.Unix()
		buckets[sec] = append(buckets[sec], s)
	}
	return idx
}

// Within returns the machine's sales with timestamps in [from, to]
func (idx *SaleIndex) Within(machineID string, from, to time.Time) []*Sale {
	buckets, ok := idx.byMachine[machineID]
	if !ok {
		return nil
	}
	var out []*Sale
	for sec := from.Unix(); sec <= to.Unix(); sec++ {
		for _, s := range buckets[sec] {
			if !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
				out = append(out, s)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// SaleAmountIndex holds sales keyed by exact amount and timestamp bucket.
// Many QR transactions carry no machine id, so the orphan-transaction pass
// correlates on amount instead of machine.
type SaleAmountIndex struct {
	byAmount map[string]map[int64][]*Sale
}

// amountKey canonicalizes an amount for exact-equality lookup
func amountKey(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// NewSaleAmountIndex builds an amount-keyed sale index over the given records
func NewSaleAmountIndex(sales []Sale) *SaleAmountIndex {
	idx := &SaleAmountIndex{byAmount: make(map[string]map[int64][]*Sale)}
	for i := range sales {
		s := &sales[i]
		key := amountKey(s.Amount)
		buckets, ok := idx.byAmount[key]
		if !ok {
			buckets = make(map[int64][]*Sale)
			idx.byAmount[key] = buckets
		}
		sec := s.Timestamp.Unix()
		buckets[sec] = append(buckets[sec], s)
	}
	return idx
}

// Within returns sales of exactly the given amount with timestamps in [from, to]
func (idx *SaleAmountIndex) Within(amount decimal.Decimal, from, to time.Time) []*Sale {
	buckets, ok := idx.byAmount[amountKey(amount)]
	if !ok {
		return nil
	}
	var out []*Sale
	for sec := from.Unix(); sec <= to.Unix(); sec++ {
		for _, s := range buckets[sec] {
			if !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
				out = append(out, s)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// QRIndex holds QR transactions keyed by timestamp bucket only; service and
// machine filtering happen in the matcher because machine ids are unreliable
// on this feed.
type QRIndex struct {
	buckets map[int64][]*QRTransaction
}

// NewQRIndex builds a transaction index over the given records
func NewQRIndex(transactions []QRTransaction) *QRIndex {
	idx := &QRIndex{buckets: make(map[int64][]*QRTransaction)}
	for i := range transactions {
		t := &transactions[i]
		sec := t.Timestamp.Unix()
		idx.buckets[sec] = append(idx.buckets[sec], t)
	}
	return idx
}

// Within returns transactions with timestamps in [from, to]
func (idx *QRIndex) Within(from, to time.Time) []*QRTransaction {
	var out []*QRTransaction
	for sec := from.Unix(); sec <= to.Unix(); sec++ {
		for _, t := range idx.buckets[sec] {
			if !t.Timestamp.Before(from) && !t.Timestamp.After(to) {
				out = append(out, t)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
