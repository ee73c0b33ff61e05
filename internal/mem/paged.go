package mem

// Paged implements a generic paged, sparsely-addressed memory: values are
// stored in fixed-size pages allocated on demand, so a store far from any
// previously-touched address does not require copying everything in
// between. It generalizes the original integer-only paged memory so the
// same page/gap bookkeeping can back any element type addressed by a plain
// uint, e.g. bytecode bytes, source line numbers, or VM value-stack slots.
type Paged[T any] struct {
	PagedCore
	pages [][]T
}

// Ints is a Paged memory of int, the paged storage used for FIRST/THIRD's
// addressable memory model; retained so existing callers and tests
// continue to address it by this name.
type Ints = Paged[int]

// Size returns an address one position higher than the last position in the
// last page allocated so far.
func (m *Paged[T]) Size() uint {
	if i := len(m.bases) - 1; i >= 0 {
		return m.bases[i] + uint(len(m.pages[i]))
	}
	return 0
}

// Load returns a single value from the given address.
// Unallocated pages are left unallocated, resulting in implicit zero values.
// Returns an error if addr exceeds any Limit.
func (m *Paged[T]) Load(addr uint) (T, error) {
	var zero T
	if err := m.checkLimit(addr, "load"); err != nil {
		return zero, err
	}

	if m.PageSize == 0 || len(m.pages) == 0 {
		return zero, nil
	}

	pageID := m.findPage(addr)
	base := m.bases[pageID]
	page := m.pages[pageID]
	if i := int(addr) - int(base); 0 <= i && i < len(page) {
		return page[i], nil
	}

	return zero, nil
}

// LoadInto reads len(buf) values from memory starting at addr.
// Skips any unallocated pages, zeroing the result buffer where encountered.
// Returns an error if Limit would be exceeded; no partial load is done.
func (m *Paged[T]) LoadInto(addr uint, buf []T) error {
	if len(buf) == 0 {
		return nil
	}

	var zero T
	end := addr + uint(len(buf))
	if err := m.checkLimit(end, "load"); err != nil {
		return err
	}

	for pageID := m.findPage(addr); addr < end && pageID < len(m.bases); pageID++ {
		base := m.bases[pageID]
		if base > end {
			break
		}

		if skip := int(base) - int(addr); skip > 0 {
			if skip >= len(buf) {
				break
			}
			addr += uint(skip)
			for i := range buf[:skip] {
				buf[i] = zero
			}
			buf = buf[skip:]
		}

		page := m.pages[pageID]
		if skip := int(addr) - int(base); skip > 0 {
			if skip >= len(page) {
				continue
			}
			base += uint(skip)
			page = page[skip:]
		}

		n := copy(buf, page)
		buf = buf[n:]
		addr += uint(n)
	}

	for i := range buf {
		buf[i] = zero
	}

	return nil
}

// Stor stores any values at addr, allocating pages if necessary.
// Returns an error if Limit would be exceeded; no partial store is done.
func (m *Paged[T]) Stor(addr uint, values ...T) error {
	if len(values) == 0 {
		return nil
	}

	end := addr + uint(len(values))
	if err := m.checkLimit(end, "stor"); err != nil {
		return err
	}

	if m.PageSize == 0 {
		m.PageSize = DefaultIntsPageSize
	}

	for pageID := m.findPage(addr); addr < end; pageID++ {
		base, size, page := m.allocPage(pageID, addr)
		if skip := addr - base; skip > 0 {
			if skip >= size {
				continue
			}
			base += skip
			page = page[skip:]
		}
		n := copy(page, values)
		values = values[n:]
		addr += uint(n)
	}

	return nil
}

// Push appends a single value at the current Size(), growing storage as
// needed; it is the sequential-append counterpart to the random-access
// Stor, used where a page memory backs an append-only structure like a
// bytecode array.
func (m *Paged[T]) Push(value T) uint {
	addr := m.Size()
	_ = m.Stor(addr, value)
	return addr
}

func (m *Paged[T]) allocPage(pageID int, addr uint) (base, size uint, page []T) {
	base, size, isNew := m.PagedCore.allocPage(pageID, addr)
	if isNew {
		page = make([]T, size)
		if pageID == len(m.bases) {
			m.pages = append(m.pages, page)
		} else {
			m.pages = append(m.pages, nil)
			copy(m.pages[pageID+1:], m.pages[pageID:])
			m.pages[pageID] = page
		}
	} else {
		page = m.pages[pageID]
	}
	return base, size, page
}
