package query

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kyleking/sqlassist/internal/catalog"
)

// cmpBetween is a grammar-only comparator that expands to gte and lte
const cmpBetween Comparator = "between"

type phrase struct {
	words []string
	cmp   Comparator
}

func phrases(cmp Comparator, list ...string) []phrase {
	out := make([]phrase, 0, len(list))
	for _, p := range list {
		out = append(out, phrase{words: strings.Fields(p), cmp: cmp})
	}

	return out
}

// comparatorPhrases is searched longest first, so "is not" wins over "is".
var comparatorPhrases = sortPhrases(slices.Concat(
	phrases(CmpGte, "greater than or equal to", "more than or equal to", "at least", "no less than",
		"not less than", "since", "from", ">=", "minimum of"),
	phrases(CmpLte, "less than or equal to", "at most", "no more than", "not more than", "up to",
		"until", "through", "<=", "maximum of"),
	phrases(CmpGt, "greater than", "more than", "higher than", "larger than", "bigger than", "over",
		"above", "exceeds", "exceeding", "exceed", "after", "later than", ">"),
	phrases(CmpLt, "less than", "fewer than", "lower than", "smaller than", "under", "below",
		"before", "earlier than", "prior to", "<"),
	phrases(CmpNeq, "not equal to", "is not", "isn't", "not", "other than", "except", "excluding", "!=", "<>"),
	phrases(CmpEq, "equal to", "equals", "equal", "is", "=", "named", "called", "on"),
	phrases(CmpLike, "like", "contains", "containing", "contain", "starting with", "starts with",
		"matching", "matches", "includes", "including"),
	phrases(CmpIn, "in", "one of", "any of", "among"),
	phrases(cmpBetween, "between"),
))

func sortPhrases(ps []phrase) []phrase {
	slices.SortStableFunc(ps, func(a, b phrase) int { return len(b.words) - len(a.words) })
	return ps
}

// countPhrases is longest first, so "total number of" is never read as a sum
var countPhrases = [][]string{
	{"total", "number", "of"}, {"how", "many"}, {"number", "of"}, {"count", "of"}, {"count"},
}

var (
	aggregateWords = map[string]AggregateFn{
		"average": AggAvg, "avg": AggAvg, "mean": AggAvg,
		"sum": AggSum, "total": AggSum,
		"maximum": AggMax, "max": AggMax,
		"minimum": AggMin, "min": AggMin,
	}

	// Superlatives order rows when a quantifier is present ("top 5 highest
	// balances") and aggregate otherwise ("highest balance").
	superlatives = map[string]Direction{
		"highest": Desc, "largest": Desc, "biggest": Desc, "most": Desc,
		"lowest": Asc, "smallest": Asc, "least": Asc,
	}

	quantifierWords = map[string]Direction{"top": Desc, "first": "", "limit": "", "bottom": Asc}

	orderWords = []string{"sort", "sorted", "order", "ordered", "rank", "ranked", "arrange", "arranged"}

	byPhrases = [][]string{{"group", "by"}, {"grouped", "by"}, {"for", "each"}, {"per"}, {"by"}}

	directionPhrases = []struct {
		words []string
		dir   Direction
	}{
		{[]string{"low", "to", "high"}, Asc},
		{[]string{"high", "to", "low"}, Desc},
		{[]string{"smallest", "first"}, Asc},
		{[]string{"lowest", "first"}, Asc},
		{[]string{"oldest", "first"}, Asc},
		{[]string{"largest", "first"}, Desc},
		{[]string{"highest", "first"}, Desc},
		{[]string{"newest", "first"}, Desc},
		{[]string{"latest", "first"}, Desc},
		{[]string{"ascending"}, Asc},
		{[]string{"asc"}, Asc},
		{[]string{"increasing"}, Asc},
		{[]string{"descending"}, Desc},
		{[]string{"desc"}, Desc},
		{[]string{"decreasing"}, Desc},
	}

	recencyWords = map[string]Direction{"latest": Desc, "newest": Desc, "recent": Desc, "oldest": Asc, "earliest": Asc}

	unsupportedWords = map[string]bool{
		"delete": true, "update": true, "insert": true, "drop": true, "alter": true, "truncate": true,
		"create": true, "grant": true, "revoke": true, "remove": true, "modify": true, "change": true,
		"rename": true, "replace": true, "merge": true, "upsert": true, "exec": true, "execute": true,
		"join": true, "union": true, "median": true, "mode": true, "stddev": true, "variance": true,
		"percentile": true,
	}

	rowWords = map[string]bool{"rows": true, "results": true, "records": true, "entries": true, "items": true, "row": true, "result": true, "record": true}

	// noiseWords carry no meaning of their own. They never become values or
	// unknown column names.
	noiseWords = map[string]bool{
		"a": true, "an": true, "the": true, "show": true, "list": true, "give": true, "get": true,
		"display": true, "find": true, "fetch": true, "me": true, "us": true, "all": true, "any": true,
		"with": true, "where": true, "whose": true, "which": true, "that": true, "who": true, "whom": true,
		"have": true, "has": true, "having": true, "had": true, "for": true, "of": true, "in": true,
		"at": true, "and": true, "or": true, "please": true, "what": true, "are": true, "is": true,
		"was": true, "were": true, "there": true, "their": true, "its": true, "it": true, "them": true,
		"those": true, "these": true, "this": true, "now": true, "also": true, "then": true, "only": true,
		"just": true, "same": true, "instead": true, "but": true, "about": true, "how": true, "to": true,
		"i": true, "we": true, "you": true, "want": true, "need": true, "see": true, "tell": true,
		"every": true, "everything": true, "each": true, "do": true, "does": true, "much": true,
		"be": true, "can": true, "could": true, "would": true, "from": true, "by": true, "on": true,
		"than": true, "value": true, "values": true, "data": true, "info": true, "details": true,
		"many": true, "some": true, "one": true, "ones": true, "plus": true, "again": true,
	}

	followUpLeads = [][]string{
		{"what", "about"}, {"how", "about"}, {"and"}, {"now"}, {"also"}, {"then"}, {"only"},
		{"instead"}, {"but"}, {"plus"}, {"same"},
	}
	pronouns   = map[string]bool{"those": true, "them": true, "these": true, "same": true}
	resetWords = map[string]bool{"all": true, "every": true, "everything": true}
	fillers    = map[string]bool{"is": true, "are": true, "was": true, "were": true, "be": true, "has": true, "have": true}

	multipliers = map[string]float64{
		"k": 1e3, "thousand": 1e3, "lakh": 1e5, "lakhs": 1e5, "lac": 1e5, "m": 1e6, "mn": 1e6,
		"million": 1e6, "crore": 1e7, "crores": 1e7, "cr": 1e7, "b": 1e9, "bn": 1e9, "billion": 1e9,
	}

	truthy = map[string]bool{"true": true, "yes": true, "y": true, "1": true, "on": true, "active": true}
	falsy  = map[string]bool{"false": true, "no": true, "n": true, "0": true, "off": true, "inactive": true}
)

// Extractor reads utterances against a catalog. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	catalog *catalog.Catalog
}

// NewExtractor creates an extractor for the given catalog
func NewExtractor(c *catalog.Catalog) *Extractor {
	return &Extractor{catalog: c}
}

// Extract turns an utterance into an intent. prior is the previous turn's
// intent, if any; now anchors relative dates. The result is a function of
// its arguments alone.
func (x *Extractor) Extract(utterance string, prior *Intent, now time.Time) (Intent, error) {
	items, err := scanItems(x.catalog, tokenize(utterance))
	if err != nil {
		return Intent{}, err
	}

	p := &parser{cat: x.catalog, items: items, now: now}
	if err := p.parse(); err != nil {
		return Intent{}, err
	}

	current := p.intent()

	followUp := p.cue != "" || (len(current.TargetColumns) == 0 && len(current.Filters) == 0)

	switch {
	case prior != nil && followUp && !p.reset:
		return mergeFollowUp(*prior, current, followUpHints{opExplicit: p.opExplicit, groupBy: p.groupHint}), nil
	case prior == nil && p.cue != "":
		current.UnresolvedReference = p.cue
	}

	return current, nil
}

type parser struct {
	cat   *catalog.Catalog
	items []item
	now   time.Time
	pos   int

	op         Operation
	opExplicit bool
	aggFn      AggregateFn
	aggCol     string
	aggPhrase  string
	targets    []string
	filters    []Predicate
	order      *OrderBy
	byCol      string
	byDir      Direction
	groupHint  string
	limit      int
	topDir     Direction
	topCol     string
	quantified bool

	cue   string
	reset bool
}

func (p *parser) at(k int) item {
	if k >= 0 && k < len(p.items) {
		return p.items[k]
	}

	return item{kind: itemSymbol}
}

// wordsAt reports whether the literal words start at items[k]
func (p *parser) wordsAt(k int, words []string) bool {
	for i, w := range words {
		if !p.at(k + i).is(w) {
			return false
		}
	}

	return len(words) > 0
}

func (p *parser) parse() error {
	p.scanCues()

	for p.pos < len(p.items) {
		if err := p.step(); err != nil {
			return err
		}
	}

	return p.finish()
}

func (p *parser) scanCues() {
	for _, lead := range followUpLeads {
		if p.wordsAt(0, lead) {
			p.cue = strings.Join(lead, " ")
			break
		}
	}

	for _, it := range p.items {
		if it.kind != itemWord {
			continue
		}

		if p.cue == "" && pronouns[it.tok.text] {
			p.cue = it.tok.text
		}

		if resetWords[it.tok.text] {
			p.reset = true
		}

		if it.is("top", "bottom") {
			p.quantified = true
		}
	}

	// A count only makes a quantifier when it sizes the result:
	// "first 5", "limit 10", "5 accounts", "3 highest".
	for k, it := range p.items {
		if _, ok := smallCount(it); !ok {
			continue
		}

		prev, next := p.at(k-1), p.at(k+1)
		_, superlative := superlatives[next.tok.text]

		if prev.is("first", "limit") || next.kind == itemTable ||
			(next.kind == itemWord && (rowWords[next.tok.text] || superlative)) {
			p.quantified = true
		}
	}
}

func (p *parser) step() error {
	it := p.at(p.pos)

	switch it.kind {
	case itemColumn:
		return p.columnClause()
	case itemTable:
		p.pos++
		return nil
	case itemValue:
		return p.valueClause()
	case itemSymbol:
		if cmp, n := p.comparatorAt(p.pos); n > 0 {
			return p.implicitComparison(cmp, n)
		}

		p.pos++

		return nil
	}

	w := it.tok.text

	// conditions only combine with "and"
	if unsupportedWords[w] || w == "or" || (w == "set" && p.pos == 0) {
		return unsupported(it.phrase)
	}

	for _, words := range countPhrases {
		if p.wordsAt(p.pos, words) {
			p.setAggregate(AggCount, strings.Join(words, " "))
			p.pos += len(words)
			p.skipTableTerms()

			return nil
		}
	}

	if fn, ok := aggregateWords[w]; ok {
		return p.aggregateClause(fn)
	}

	if dir, ok := recencyWords[w]; ok {
		return p.recencyClause(dir)
	}

	if dir, n := p.directionAt(p.pos); n > 0 {
		p.applyDirection(dir)
		p.pos += n

		return nil
	}

	if p.wordsAt(p.pos, []string{"most", "recent"}) {
		p.pos++
		return p.recencyClause(Desc)
	}

	if dir, ok := superlatives[w]; ok {
		if p.quantified {
			p.topDir = dir
			p.pos++
			p.takeTopColumn()

			return nil
		}

		fn := AggMax
		if dir == Asc {
			fn = AggMin
		}

		return p.aggregateClause(fn)
	}

	if _, ok := quantifierWords[w]; ok {
		return p.quantifierClause()
	}

	if slices.Contains(orderWords, w) {
		return p.orderClause()
	}

	for _, by := range byPhrases {
		if p.wordsAt(p.pos, by) {
			return p.byClause(len(by))
		}
	}

	if p.cat.TimeColumn() != "" {
		if r, n := dateAt(p.items, p.pos, p.now, false); n > 0 {
			p.pos += n
			return p.addDatePredicates(p.cat.TimeColumn(), CmpEq, r, r, it.phrase)
		}
	}

	if cmp, n := p.comparatorAt(p.pos); n > 0 && rangeComparator(cmp) && !fillers[w] && !p.at(p.pos).is("from") {
		return p.implicitComparison(cmp, n)
	}

	if noiseWords[w] || isNumberWord(w) || rowWords[w] {
		p.pos++
		return nil
	}

	// "north region" names a value ahead of its column
	if next := p.at(p.pos + 1); next.kind == itemColumn {
		if col, _ := p.cat.Column(next.column); col.Type == catalog.TypeText {
			if err := p.checkComparator(col, CmpEq, next.phrase); err != nil {
				return err
			}

			p.filters = append(p.filters, Predicate{Column: col.Name, Comparator: CmpEq, Values: []any{it.tok.raw}})
			p.pos += 2

			return nil
		}
	}

	return unknownColumn(it.phrase)
}

func rangeComparator(cmp Comparator) bool {
	switch cmp {
	case CmpGt, CmpGte, CmpLt, CmpLte, cmpBetween:
		return true
	default:
		return false
	}
}

func isNumberWord(w string) bool {
	_, ok := numberWords[w]
	return ok
}

// comparatorAt matches a comparison phrase at items[k], allowing a leading
// "is"/"are" ("balance is over 100").
func (p *parser) comparatorAt(k int) (Comparator, int) {
	skipped := 0
	if fillers[p.at(k).tok.text] && p.at(k).kind == itemWord && !p.wordsAt(k, []string{"is", "not"}) {
		if _, n := p.matchComparator(k + 1); n > 0 {
			skipped = 1
		}
	}

	cmp, n := p.matchComparator(k + skipped)
	if n == 0 {
		return "", 0
	}

	return cmp, n + skipped
}

func (p *parser) matchComparator(k int) (Comparator, int) {
	for _, ph := range comparatorPhrases {
		if p.wordsAt(k, ph.words) {
			return ph.cmp, len(ph.words)
		}
	}

	return "", 0
}

func (p *parser) directionAt(k int) (Direction, int) {
	for _, d := range directionPhrases {
		if p.wordsAt(k, d.words) {
			return d.dir, len(d.words)
		}
	}

	return "", 0
}

func (p *parser) applyDirection(dir Direction) {
	if p.order != nil {
		p.order.Direction = dir
		return
	}

	p.byDir = dir
}

func (p *parser) skipTableTerms() {
	for p.at(p.pos).kind == itemTable || p.at(p.pos).is("of", "the", "all") {
		p.pos++
	}
}

func (p *parser) setAggregate(fn AggregateFn, phrase string) {
	p.opExplicit = true
	p.aggFn = fn
	p.aggPhrase = phrase

	if fn == AggCount {
		p.op = OpCount
	} else {
		p.op = OpAggregate
	}
}

func (p *parser) aggregateClause(fn AggregateFn) error {
	word := p.at(p.pos)
	p.pos++

	// "total number of" is a count, handled above; "total" alone is a sum.
	p.setAggregate(fn, word.phrase)
	p.skipTableTerms()

	if next := p.at(p.pos); next.kind == itemColumn {
		p.aggCol = next.column
		p.pos++
	} else if next.kind == itemWord && !noiseWords[next.tok.text] && !p.isKeywordAt(p.pos) {
		return unknownColumn(next.phrase)
	}

	return nil
}

// isKeywordAt reports whether items[k] starts any grammar phrase
func (p *parser) isKeywordAt(k int) bool {
	it := p.at(k)
	if it.kind != itemWord {
		return false
	}

	w := it.tok.text
	if _, ok := aggregateWords[w]; ok {
		return true
	}

	if _, ok := superlatives[w]; ok {
		return true
	}

	if _, ok := quantifierWords[w]; ok {
		return true
	}

	if _, ok := recencyWords[w]; ok {
		return true
	}

	if slices.Contains(orderWords, w) || unsupportedWords[w] || rowWords[w] {
		return true
	}

	if _, n := p.comparatorAt(k); n > 0 {
		return true
	}

	if _, n := p.directionAt(k); n > 0 {
		return true
	}

	for _, by := range byPhrases {
		if p.wordsAt(k, by) {
			return true
		}
	}

	if p.cat.TimeColumn() != "" {
		if _, n := dateAt(p.items, k, p.now, false); n > 0 {
			return true
		}
	}

	return false
}

func (p *parser) quantifierClause() error {
	it := p.at(p.pos)
	p.pos++

	if dir := quantifierWords[it.tok.text]; dir != "" {
		p.topDir = dir
	}

	if p.at(p.pos).is("the") {
		p.pos++
	}

	next := p.at(p.pos)
	if n, ok := smallCount(next); ok {
		p.limit = n
		p.pos++
	} else if next.kind == itemValue {
		return unparseable(next.phrase)
	} else if it.is("limit") {
		return unparseable(it.phrase)
	}

	p.skipTableTerms()

	if dir, ok := superlatives[p.at(p.pos).tok.text]; ok && p.at(p.pos).kind == itemWord {
		p.topDir = dir
		p.pos++
	}

	p.takeTopColumn()

	return nil
}

// takeTopColumn consumes the column a quantifier ranks by ("top 5 balances")
func (p *parser) takeTopColumn() {
	p.skipTableTerms()

	next := p.at(p.pos)
	if next.kind != itemColumn || p.topDir == "" {
		return
	}

	if _, n := p.comparatorAt(p.pos + 1); n > 0 {
		return
	}

	if p.at(p.pos+1).kind == itemValue {
		return
	}

	p.topCol = next.column
	p.pos++
}

func (p *parser) orderClause() error {
	p.pos++

	for p.at(p.pos).is("by", "on", "using", "the", "in", "it", "them", "results") {
		p.pos++
	}

	next := p.at(p.pos)

	switch next.kind {
	case itemColumn:
		p.pos++
	case itemWord:
		if dir, n := p.directionAt(p.pos); n > 0 {
			p.applyDirection(dir)
			p.pos += n

			return nil
		}

		if !noiseWords[next.tok.text] {
			return unknownColumn(next.phrase)
		}

		return nil
	default:
		return nil
	}

	col, _ := p.cat.Column(next.column)
	if !col.Sortable {
		return unsupported("sort by " + next.phrase)
	}

	dir := Asc
	if d, n := p.directionAt(p.pos); n > 0 {
		dir = d
		p.pos += n
	}

	p.order = &OrderBy{Column: col.Name, Direction: dir}

	return nil
}

func (p *parser) byClause(n int) error {
	p.pos += n

	if p.at(p.pos).is("the") {
		p.pos++
	}

	next := p.at(p.pos)
	if next.kind != itemColumn {
		if next.kind == itemWord && !noiseWords[next.tok.text] && !p.isKeywordAt(p.pos) {
			return unknownColumn(next.phrase)
		}

		return nil
	}

	p.pos++
	p.byCol = next.column

	if d, n := p.directionAt(p.pos); n > 0 {
		p.byDir = d
		p.pos += n
	}

	return nil
}

func (p *parser) recencyClause(dir Direction) error {
	p.pos++

	if p.at(p.pos).is("first") {
		p.pos++
	}

	col := p.cat.TimeColumn()

	if next := p.at(p.pos); next.kind == itemColumn {
		if c, _ := p.cat.Column(next.column); c.Type == catalog.TypeTimestamp {
			col = next.column
			p.pos++
		}
	}

	if col != "" && p.order == nil {
		p.order = &OrderBy{Column: col, Direction: dir}
	}

	return nil
}

func (p *parser) columnClause() error {
	it := p.at(p.pos)
	p.pos++

	col, _ := p.cat.Column(it.column)

	if cmp, n := p.comparatorAt(p.pos); n > 0 {
		p.pos += n
		return p.comparison(col, cmp, it.phrase)
	}

	next := p.at(p.pos)

	switch {
	case next.kind == itemValue:
		return p.comparison(col, CmpEq, it.phrase)
	case col.Type == catalog.TypeTimestamp:
		if _, n := dateAt(p.items, p.pos, p.now, true); n > 0 {
			return p.comparison(col, CmpEq, it.phrase)
		}
	case col.Type == catalog.TypeText && next.kind == itemWord &&
		!noiseWords[next.tok.text] && !p.isKeywordAt(p.pos):
		return p.comparison(col, CmpEq, it.phrase)
	case col.Type == catalog.TypeBoolean && next.kind == itemWord &&
		(truthy[next.tok.text] || falsy[next.tok.text]):
		return p.comparison(col, CmpEq, it.phrase)
	}

	if !slices.Contains(p.targets, col.Name) {
		p.targets = append(p.targets, col.Name)
	}

	return nil
}

// implicitComparison handles a comparison with no column in front of it,
// applying it to the catalog's time column for dates and measure column
// otherwise.
func (p *parser) implicitComparison(cmp Comparator, n int) error {
	cmpPhrase := p.at(p.pos).phrase
	temporal := p.at(p.pos).is("before", "after", "since", "until", "earlier", "later", "prior")
	p.pos += n

	column := p.cat.MeasureColumn()
	if _, dn := dateAt(p.items, p.pos, p.now, temporal); dn > 0 && p.cat.TimeColumn() != "" {
		column = p.cat.TimeColumn()
	}

	if column == "" {
		return unknownColumn(cmpPhrase)
	}

	col, _ := p.cat.Column(column)

	return p.comparison(col, cmp, cmpPhrase)
}

func (p *parser) valueClause() error {
	it := p.at(p.pos)

	if p.cat.TimeColumn() != "" {
		if r, n := dateAt(p.items, p.pos, p.now, false); n > 0 {
			p.pos += n
			return p.addDatePredicates(p.cat.TimeColumn(), CmpEq, r, r, it.phrase)
		}
	}

	if it.tok.kind == tokNumber {
		if column, ok := p.cat.MatchPattern(it.tok.text); ok {
			col, _ := p.cat.Column(column)
			return p.comparison(col, CmpEq, it.phrase)
		}

		if n, ok := smallCount(it); ok && p.limit == 0 {
			next := p.at(p.pos + 1)
			if next.kind == itemTable || (next.kind == itemWord && rowWords[next.tok.text]) {
				p.limit = n
				p.pos += 2

				return nil
			}
		}
	}

	if it.tok.kind == tokDate {
		if p.cat.TimeColumn() == "" {
			return unknownColumn(it.phrase)
		}

		return unparseable(it.phrase)
	}

	p.pos++

	return nil
}

func (p *parser) checkComparator(col catalog.Column, cmp Comparator, colPhrase string) error {
	if !col.Filterable {
		return unsupported("filter on " + colPhrase)
	}

	ok := true

	switch cmp {
	case CmpGt, CmpGte, CmpLt, CmpLte, cmpBetween:
		ok = col.Type.Ordered()
	case CmpLike:
		ok = col.Type == catalog.TypeText
	case CmpIn:
		ok = col.Type != catalog.TypeTimestamp && col.Type != catalog.TypeBoolean
	}

	if !ok {
		return unsupported(string(cmp) + " on " + colPhrase)
	}

	return nil
}

// comparison reads the value(s) at the cursor and records the predicate(s)
func (p *parser) comparison(col catalog.Column, cmp Comparator, colPhrase string) error {
	// "date in 2024" names a period, not a list
	if col.Type == catalog.TypeTimestamp && cmp == CmpIn {
		cmp = CmpEq
	}

	if err := p.checkComparator(col, cmp, colPhrase); err != nil {
		return err
	}

	if col.Type == catalog.TypeTimestamp {
		return p.dateComparison(col, cmp, colPhrase)
	}

	switch cmp {
	case CmpIn:
		values, err := p.valueList(col)
		if err != nil {
			return err
		}

		p.filters = append(p.filters, Predicate{Column: col.Name, Comparator: CmpIn, Values: values})

		return nil
	case cmpBetween:
		lo, err := p.value(col, colPhrase, false)
		if err != nil {
			return err
		}

		if !p.at(p.pos).is("and", "to") {
			return unparseable(colPhrase + " between")
		}

		p.pos++

		hi, err := p.value(col, colPhrase, false)
		if err != nil {
			return err
		}

		p.filters = append(p.filters,
			Predicate{Column: col.Name, Comparator: CmpGte, Values: []any{lo}},
			Predicate{Column: col.Name, Comparator: CmpLte, Values: []any{hi}},
		)

		return nil
	default:
		v, err := p.value(col, colPhrase, false)
		if err != nil {
			return err
		}

		p.filters = append(p.filters, Predicate{Column: col.Name, Comparator: cmp, Values: []any{v}})

		return nil
	}
}

func (p *parser) dateComparison(col catalog.Column, cmp Comparator, colPhrase string) error {
	r, n := dateAt(p.items, p.pos, p.now, true)
	if n == 0 {
		return unparseable(p.valuePhrase(colPhrase))
	}

	p.pos += n
	hi := r

	if cmp == cmpBetween {
		if !p.at(p.pos).is("and", "to") {
			return unparseable(colPhrase + " between")
		}

		p.pos++

		r2, n2 := dateAt(p.items, p.pos, p.now, true)
		if n2 == 0 {
			return unparseable(p.valuePhrase(colPhrase))
		}

		p.pos += n2
		hi = r2
	}

	return p.addDatePredicates(col.Name, cmp, r, hi, colPhrase)
}

// addDatePredicates lowers a comparison against a date phrase. Ranges such
// as "last month" become a pair of bounds.
func (p *parser) addDatePredicates(column string, cmp Comparator, lo, hi timeRange, phrase string) error {
	add := func(c Comparator, t time.Time) {
		p.filters = append(p.filters, Predicate{Column: column, Comparator: c, Values: []any{t}})
	}

	switch cmp {
	case CmpEq:
		if lo.instant() {
			add(CmpEq, lo.start)
		} else {
			add(CmpGte, lo.start)
			add(CmpLt, lo.end)
		}
	case CmpNeq:
		if !lo.instant() {
			return unsupported("not " + phrase)
		}

		add(CmpNeq, lo.start)
	case CmpGt:
		if lo.instant() {
			add(CmpGt, lo.start)
		} else {
			add(CmpGte, lo.end)
		}
	case CmpGte:
		add(CmpGte, lo.start)
	case CmpLt:
		add(CmpLt, lo.start)
	case CmpLte:
		if lo.instant() {
			add(CmpLte, lo.start)
		} else {
			add(CmpLt, lo.end)
		}
	case cmpBetween:
		add(CmpGte, lo.start)

		if hi.instant() {
			add(CmpLte, hi.start)
		} else {
			add(CmpLt, hi.end)
		}
	default:
		return unsupported(string(cmp) + " on " + phrase)
	}

	return nil
}

func (p *parser) valuePhrase(fallback string) string {
	if it := p.at(p.pos); it.phrase != "" {
		return it.phrase
	}

	return fallback
}

// value parses one literal at the cursor for the column's type. In a list
// a text value is a single word.
func (p *parser) value(col catalog.Column, colPhrase string, inList bool) (any, error) {
	if p.at(p.pos).is("the") && col.Type != catalog.TypeText {
		p.pos++
	}

	it := p.at(p.pos)
	if it.kind == itemSymbol && it.tok.text == "" {
		return nil, unparseable(colPhrase)
	}

	switch col.Type {
	case catalog.TypeInteger, catalog.TypeDecimal:
		return p.number(col, it)
	case catalog.TypeBoolean:
		switch {
		case truthy[it.tok.text]:
			p.pos++
			return true, nil
		case falsy[it.tok.text]:
			p.pos++
			return false, nil
		}

		return nil, unparseable(it.phrase)
	default:
		return p.text(it, inList)
	}
}

func (p *parser) number(col catalog.Column, it item) (any, error) {
	var f float64

	switch {
	case it.kind == itemValue && it.tok.kind == tokNumber:
		if it.tok.glued && !isMultiplier(p.at(p.pos+1)) {
			return nil, unparseable(it.phrase + p.at(p.pos+1).phrase)
		}

		v, err := strconv.ParseFloat(it.tok.text, 64)
		if err != nil {
			return nil, unparseable(it.phrase)
		}

		f = v
	case it.kind == itemValue && it.tok.kind == tokQuoted:
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(it.tok.text), ",", ""), 64)
		if err != nil {
			return nil, unparseable(it.phrase)
		}

		f = v
	case it.kind == itemWord && isNumberWord(it.tok.text):
		f = float64(numberWords[it.tok.text])
	case it.is("a", "an") && isMultiplier(p.at(p.pos+1)):
		f = 1
	default:
		return nil, unparseable(it.phrase)
	}

	p.pos++

	if next := p.at(p.pos); next.kind == itemWord {
		if m, ok := multipliers[next.tok.text]; ok {
			f *= m
			p.pos++
		}
	}

	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, unparseable(it.phrase)
	}

	if col.Type == catalog.TypeInteger {
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
			return nil, unparseable(it.phrase)
		}

		return int64(f), nil
	}

	return f, nil
}

func isMultiplier(it item) bool {
	_, ok := multipliers[it.tok.text]
	return ok && it.kind == itemWord
}

func (p *parser) text(it item, inList bool) (any, error) {
	switch {
	case it.kind == itemValue:
		p.pos++
		return it.tok.raw, nil
	case it.kind != itemWord || p.isKeywordAt(p.pos):
		return nil, unparseable(it.phrase)
	}

	words := []string{it.tok.raw}
	p.pos++

	for !inList {
		next := p.at(p.pos)
		if next.kind != itemWord || noiseWords[next.tok.text] || p.isKeywordAt(p.pos) {
			break
		}

		words = append(words, next.tok.raw)
		p.pos++
	}

	return strings.Join(words, " "), nil
}

// valueList reads "a, b or c" and "(a, b, c)". A comma must be followed
// by another value; "or" and "and" separate only when a value follows, so
// "region in north and amount over 5" keeps its second condition.
func (p *parser) valueList(col catalog.Column) ([]any, error) {
	open := p.at(p.pos)
	if open.is("(") {
		p.pos++
	}

	var values []any

	for {
		v, err := p.value(col, string(CmpIn), true)
		if err != nil {
			return nil, err
		}

		values = append(values, v)

		sep := p.at(p.pos)

		switch {
		case sep.is(","):
			p.pos++

			if p.at(p.pos).is("or", "and") {
				p.pos++
			}

			if !p.listValueAt(p.pos, col) {
				return nil, unparseable(p.valuePhrase(sep.phrase))
			}
		case sep.is("or", "and") && p.listValueAt(p.pos+1, col):
			p.pos++
		default:
			if open.is("(") {
				if !p.at(p.pos).is(")") {
					return nil, unparseable(open.phrase)
				}

				p.pos++
			}

			return values, nil
		}
	}
}

// listValueAt reports whether items[k] can start a value of the column
func (p *parser) listValueAt(k int, col catalog.Column) bool {
	it := p.at(k)

	switch it.kind {
	case itemValue:
		return true
	case itemWord:
	default:
		return false
	}

	switch col.Type {
	case catalog.TypeInteger, catalog.TypeDecimal:
		return isNumberWord(it.tok.text)
	case catalog.TypeText:
		return !noiseWords[it.tok.text] && !p.isKeywordAt(k)
	default:
		return false
	}
}

func (p *parser) finish() error {
	if p.op == OpAggregate {
		if p.aggCol == "" {
			p.aggCol = p.cat.MeasureColumn()
		}

		if p.aggCol == "" {
			return unknownColumn(p.aggPhrase)
		}

		col, _ := p.cat.Column(p.aggCol)

		ok := col.Type.Numeric()
		if p.aggFn == AggMin || p.aggFn == AggMax {
			ok = col.Type.Ordered()
		}

		if !ok {
			return unsupported(p.aggPhrase + " of " + col.Name)
		}
	}

	if p.byCol != "" && p.op == OpSelect || p.byCol != "" && p.op == "" {
		if p.order == nil {
			dir := p.byDir
			if dir == "" {
				dir = p.topDir
			}

			if dir == "" {
				dir = Asc
			}

			col, _ := p.cat.Column(p.byCol)
			if !col.Sortable {
				return unsupported("sort by " + p.byCol)
			}

			p.order = &OrderBy{Column: p.byCol, Direction: dir}
		}

		// a follow-up "by region" regroups a prior aggregate
		p.groupHint = p.byCol
		p.byCol = ""
	}

	if p.topDir != "" && p.order == nil {
		column := p.topCol
		if column == "" {
			column = p.cat.MeasureColumn()
		}

		if column != "" {
			p.order = &OrderBy{Column: column, Direction: p.topDir}
		}
	}

	if p.order != nil && p.byDir != "" && p.byCol == "" {
		p.order.Direction = p.byDir
	}

	return nil
}

func (p *parser) intent() Intent {
	in := Intent{
		Operation:     OpSelect,
		TargetColumns: p.targets,
		Filters:       p.filters,
		OrderBy:       p.order,
		Limit:         p.limit,
	}

	switch p.op {
	case OpCount:
		in.Operation = OpCount
		in.AggregateFn = AggCount
		in.GroupBy = p.byCol
	case OpAggregate:
		in.Operation = OpAggregate
		in.AggregateFn = p.aggFn
		in.AggregateColumn = p.aggCol
		in.GroupBy = p.byCol
	}

	return in
}
