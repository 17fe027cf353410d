package catalog

// CCODBalance is the built-in definition of the cash credit / overdraft
// balance table served when no catalog file is configured.
func CCODBalance() Table {
	return Table{
		Name:     "ccod_bal",
		Synonyms: []string{"accounts", "records", "rows", "ccod", "customers", "holders"},
		Columns: []Column{
			{
				Name:        "accountno",
				Type:        TypeInteger,
				Synonyms:    []string{"account", "account number", "account no", "acc no", "acc_no", "acct"},
				Filterable:  true,
				Sortable:    true,
				Description: "account number",
				Pattern:     `^\d{10,20}$`,
			},
			{
				Name:        "cust_name",
				Type:        TypeText,
				Synonyms:    []string{"customer", "customer name", "name", "client", "holder"},
				Filterable:  true,
				Sortable:    true,
				Description: "account holder name",
			},
			{
				Name:        "currentbalance",
				Type:        TypeDecimal,
				Synonyms:    []string{"balance", "current balance", "amt", "amount", "outstanding"},
				Filterable:  true,
				Sortable:    true,
				Description: "current outstanding balance",
			},
			{
				Name:        "intrate",
				Type:        TypeDecimal,
				Synonyms:    []string{"interest", "interest rate", "rate", "roi"},
				Filterable:  true,
				Sortable:    true,
				Description: "interest rate in percent",
			},
			{
				Name:        "branchno",
				Type:        TypeInteger,
				Synonyms:    []string{"branch", "branch no", "branch number", "branch_no", "br_no", "br no"},
				Filterable:  true,
				Sortable:    true,
				Description: "branch code",
			},
			{
				Name:        "branch_name",
				Type:        TypeText,
				Synonyms:    []string{"brname", "branch title"},
				Filterable:  true,
				Sortable:    true,
				Description: "branch name",
			},
		},
		DefaultColumns: []string{"accountno", "cust_name", "currentbalance", "intrate", "branch_name"},
		PrimaryOrder:   &OrderSpec{Column: "accountno", Direction: "asc"},
		MeasureColumn:  "currentbalance",
	}
}

// Default returns the validated built-in catalog
func Default() *Catalog {
	c, err := New(CCODBalance())
	if err != nil {
		panic("catalog: built-in definition is invalid: " + err.Error())
	}

	return c
}
