package executor

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/relcore/internal/bufferpool"
	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/optimizer"
	"github.com/tuannm99/relcore/internal/sql/parser"
	"github.com/tuannm99/relcore/internal/sql/plan"
	"github.com/tuannm99/relcore/internal/sql/planner"
	"github.com/tuannm99/relcore/internal/storage"
)

type harness struct {
	pool *bufferpool.Pool
	exec *Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sm, err := storage.NewStorageManager(afero.NewMemMapFs(), storage.MinPageSize, true)
	require.NoError(t, err)
	pool, err := bufferpool.NewPool(sm, storage.NewVirtualFileSet(), bufferpool.Options{
		Capacity:    4,
		CatalogPath: "/catalog.json",
	})
	require.NoError(t, err)
	return &harness{pool: pool, exec: New(pool)}
}

func (h *harness) physical(t *testing.T, sql string) (*optimizer.PhysicalPlan, error) {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	p, err := planner.New().Build(stmt)
	require.NoError(t, err)
	return optimizer.New(h.pool.Catalog()).Optimize(p)
}

func (h *harness) run(t *testing.T, sql string) (*Result, error) {
	t.Helper()
	pp, err := h.physical(t, sql)
	if err != nil {
		return nil, err
	}
	return h.exec.Execute(pp)
}

func (h *harness) mustRun(t *testing.T, sql string) *Result {
	t.Helper()
	res, err := h.run(t, sql)
	require.NoError(t, err, sql)
	return res
}

func (h *harness) seedUsers(t *testing.T) {
	t.Helper()
	h.mustRun(t, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, age INT DEFAULT 18, active BOOLEAN)")
	h.mustRun(t, "INSERT INTO users (id, name, age, active) VALUES (1, 'alice', 30, TRUE)")
	h.mustRun(t, "INSERT INTO users (id, name) VALUES (2, 'bob')")
	h.mustRun(t, "INSERT INTO users (id, name, age, active) VALUES (3, 'carol', 41, FALSE)")
}

func TestExecutor_CreateAndDropTable(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "CREATE TABLE t (a INT)")
	assert.True(t, h.pool.Catalog().HasTable("t"))

	_, err := h.run(t, "CREATE TABLE t (a INT)")
	require.ErrorIs(t, err, optimizer.ErrTableExists)

	h.mustRun(t, "INSERT INTO t (a) VALUES (1)")
	origin := h.pool.OriginPage("t")
	require.NotZero(t, origin)

	h.mustRun(t, "DROP TABLE t")
	assert.False(t, h.pool.Catalog().HasTable("t"))
	_, err = h.pool.GetPage(origin)
	require.ErrorIs(t, err, storage.ErrPageNotFound)
}

func TestExecutor_InsertAndSelectAll(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t)

	res := h.mustRun(t, "SELECT * FROM users")
	assert.Equal(t, []string{"active", "age", "id", "name"}, res.Columns)
	assert.Equal(t, [][]any{
		{true, int64(30), int64(1), "alice"},
		{nil, int64(18), int64(2), "bob"},
		{false, int64(41), int64(3), "carol"},
	}, res.Rows)
	assert.Equal(t, int64(3), res.AffectedRows)
}

func TestExecutor_SelectWithPushedFilter(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t)

	pp, err := h.physical(t, "SELECT name, age FROM users WHERE age > 20")
	require.NoError(t, err)
	require.Len(t, pp.Children, 1)
	scan, ok := pp.Children[0].Node.(*optimizer.TableScanOp)
	require.True(t, ok)
	require.NotNil(t, scan.Filter)

	res, err := h.exec.Execute(pp)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, res.Columns)
	assert.Equal(t, [][]any{{"alice", int64(30)}, {"carol", int64(41)}}, res.Rows)

	res = h.mustRun(t, "SELECT id FROM users WHERE name = 'bob' OR age = 41")
	assert.Equal(t, [][]any{{int64(2)}, {int64(3)}}, res.Rows)

	// NULL never matches
	res = h.mustRun(t, "SELECT id FROM users WHERE active = TRUE")
	assert.Equal(t, [][]any{{int64(1)}}, res.Rows)
	res = h.mustRun(t, "SELECT id FROM users WHERE active != TRUE")
	assert.Equal(t, [][]any{{int64(3)}}, res.Rows)
}

func TestExecutor_InsertConstraints(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "CREATE TABLE t (id INT PRIMARY KEY, label TEXT NOT NULL, score FLOAT, born DATE)")

	_, err := h.run(t, "INSERT INTO t (id) VALUES (1)")
	require.ErrorIs(t, err, ErrNotNull)

	_, err = h.run(t, "INSERT INTO t (id, label) VALUES ('x', 'a')")
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = h.run(t, "INSERT INTO t (id, label, born) VALUES (1, 'a', 'yesterday')")
	require.ErrorIs(t, err, ErrTypeMismatch)

	h.mustRun(t, "INSERT INTO t (id, label, score, born) VALUES (1, 'a', 2, '2024-02-29')")
	_, err = h.run(t, "INSERT INTO t (id, label) VALUES (1, 'b')")
	require.ErrorIs(t, err, ErrUniqueViolation)

	res := h.mustRun(t, "SELECT score, born FROM t")
	assert.Equal(t, [][]any{{float64(2), "2024-02-29"}}, res.Rows)
}

func TestExecutor_ForeignKey(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "CREATE TABLE users (id INT PRIMARY KEY)")
	h.mustRun(t, "INSERT INTO users (id) VALUES (7)")

	orders := catalog.NewTable("orders", map[string]catalog.Column{
		"user_id": {Name: "user_id", Type: catalog.Int, Nullable: true,
			References: &catalog.Reference{Table: "users", Column: "id"}},
	})
	_, err := h.exec.Execute(&optimizer.PhysicalPlan{Node: &optimizer.CreateTableOp{Table: orders}})
	require.NoError(t, err)

	h.mustRun(t, "INSERT INTO orders (user_id) VALUES (7)")
	h.mustRun(t, "INSERT INTO orders (user_id) VALUES (NULL)")
	_, err = h.run(t, "INSERT INTO orders (user_id) VALUES (8)")
	require.ErrorIs(t, err, ErrForeignKey)
}

func TestExecutor_AlterTable(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t)

	h.mustRun(t, "ALTER TABLE users ADD COLUMN city TEXT DEFAULT 'hanoi'")
	h.mustRun(t, "ALTER TABLE users DROP COLUMN active")

	res := h.mustRun(t, "SELECT * FROM users WHERE id = 1")
	assert.Equal(t, []string{"age", "city", "id", "name"}, res.Columns)
	assert.Equal(t, [][]any{{int64(30), "hanoi", int64(1), "alice"}}, res.Rows)

	_, err := h.run(t, "SELECT active FROM users")
	require.ErrorIs(t, err, optimizer.ErrColumnNotFound)
}

func TestExecutor_AlterDropThenAddSameName(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "CREATE TABLE t (id INT, secret INT)")
	h.mustRun(t, "INSERT INTO t (id, secret) VALUES (1, 42)")
	origin := h.pool.OriginPage("t")

	h.mustRun(t, "ALTER TABLE t DROP COLUMN secret")
	assert.NotEqual(t, origin, h.pool.OriginPage("t"))
	_, err := h.pool.GetPage(origin)
	require.ErrorIs(t, err, storage.ErrPageNotFound)

	h.mustRun(t, "ALTER TABLE t ADD COLUMN secret TEXT")
	res := h.mustRun(t, "SELECT * FROM t")
	assert.Equal(t, []string{"id", "secret"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), nil}}, res.Rows)

	res = h.mustRun(t, "SELECT id FROM t WHERE secret = 'x'")
	assert.Empty(t, res.Rows)

	h.mustRun(t, "INSERT INTO t (id, secret) VALUES (2, 'x')")
	res = h.mustRun(t, "SELECT id FROM t WHERE secret = 'x'")
	assert.Equal(t, [][]any{{int64(2)}}, res.Rows)
}

func TestExecutor_AlterModifyColumn(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "CREATE TABLE m (id INT, score INT, note TEXT)")
	h.mustRun(t, "INSERT INTO m (id, score, note) VALUES (1, 5, 'a')")
	h.mustRun(t, "INSERT INTO m (id, score) VALUES (2, 7)")
	h.mustRun(t, "INSERT INTO m (id, score, note) VALUES (2, 9, 'c')")

	h.mustRun(t, "ALTER TABLE m MODIFY COLUMN score FLOAT")
	res := h.mustRun(t, "SELECT score FROM m")
	assert.Equal(t, [][]any{{float64(5)}, {float64(7)}, {float64(9)}}, res.Rows)

	_, err := h.run(t, "ALTER TABLE m MODIFY COLUMN score TEXT")
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = h.run(t, "ALTER TABLE m MODIFY COLUMN note TEXT NOT NULL")
	require.ErrorIs(t, err, ErrNotNull)

	_, err = h.run(t, "ALTER TABLE m MODIFY COLUMN id INT UNIQUE")
	require.ErrorIs(t, err, ErrUniqueViolation)

	// failed statements leave schema and rows alone
	tbl, ok := h.pool.Catalog().GetTable("m")
	require.True(t, ok)
	assert.Equal(t, catalog.Float, tbl.Columns["score"].Type)
	assert.True(t, tbl.Columns["note"].Nullable)
	assert.False(t, tbl.Columns["id"].Unique)
	res = h.mustRun(t, "SELECT id, note FROM m")
	assert.Equal(t, [][]any{{int64(1), "a"}, {int64(2), nil}, {int64(2), "c"}}, res.Rows)
}

func TestExecutor_ManyRowsSpanPages(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "CREATE TABLE notes (id INT, body TEXT)")
	for i := 0; i < 20; i++ {
		_, err := h.exec.Execute(&optimizer.PhysicalPlan{Node: &optimizer.InsertOp{
			DataSource: "notes",
			Rows: []optimizer.Row{{
				"id":   catalog.IntValue(int64(i)),
				"body": catalog.TextValue("some fairly long note body that fills pages"),
			}},
		}})
		require.NoError(t, err)
	}
	res := h.mustRun(t, "SELECT id FROM notes WHERE id >= 18")
	assert.Equal(t, [][]any{{int64(18)}, {int64(19)}}, res.Rows)
}

func TestExecutor_NotSupported(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec.Execute(&optimizer.PhysicalPlan{Node: &optimizer.IndexScanOp{DataSource: "x", Index: "i"}})
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = h.exec.Execute(nil)
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = h.exec.Execute(&optimizer.PhysicalPlan{Node: &optimizer.TableScanOp{DataSource: "ghost"}})
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestEval(t *testing.T) {
	row := optimizer.Row{
		"a": catalog.IntValue(4),
		"b": catalog.FloatValue(1.5),
		"n": catalog.NullValue(),
	}
	id := func(n string) plan.Expression { return &plan.Identifier{Name: n} }
	c := func(v catalog.Value) plan.Expression { return &plan.Constant{Value: v} }
	bin := func(l plan.Expression, op plan.BinaryOp, r plan.Expression) plan.Expression {
		return &plan.Binary{Op: op, Left: l, Right: r}
	}

	v, err := eval(bin(id("a"), plan.Multiply, c(catalog.IntValue(2))), row)
	require.NoError(t, err)
	assert.Equal(t, catalog.IntValue(8), v)

	v, err = eval(bin(id("a"), plan.Add, id("b")), row)
	require.NoError(t, err)
	assert.Equal(t, catalog.FloatValue(5.5), v)

	_, err = eval(bin(id("a"), plan.Divide, c(catalog.IntValue(0))), row)
	require.ErrorIs(t, err, ErrDivisionByZero)

	v, err = eval(bin(id("n"), plan.Equal, id("n")), row)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// NULL AND false is false, NULL OR true is true
	v, err = eval(bin(bin(id("n"), plan.Equal, id("a")), plan.And, bin(id("a"), plan.LessThan, id("b"))), row)
	require.NoError(t, err)
	assert.Equal(t, catalog.BoolValue(false), v)
	v, err = eval(bin(bin(id("n"), plan.Equal, id("a")), plan.Or, bin(id("a"), plan.GreaterThan, id("b"))), row)
	require.NoError(t, err)
	assert.Equal(t, catalog.BoolValue(true), v)

	_, err = eval(bin(id("a"), plan.Equal, c(catalog.TextValue("x"))), row)
	require.ErrorIs(t, err, ErrTypeMismatch)

	ok, err := matches(bin(id("n"), plan.NotEqual, c(catalog.IntValue(1))), row)
	require.NoError(t, err)
	assert.False(t, ok)
}
