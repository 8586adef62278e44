package benchmark

import (
	"testing"

	"github.com/coregx/quickdao"
)

type BenchItem struct {
	ID       int64  `db:"id,pk"`
	Name     string `db:"name"`
	Category string `db:"category"`
	Price    int    `db:"price"`
}

func itemPrice(i *BenchItem) any    { return &i.Price }
func itemCategory(i *BenchItem) any { return &i.Category }

func BenchmarkGenerator(b *testing.B) {
	meta, err := quickdao.MetaOf[BenchItem]()
	if err != nil {
		b.Fatal(err)
	}
	g, err := quickdao.NewDialectGenerator("postgres")
	if err != nil {
		b.Fatal(err)
	}

	b.Run("Insert", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = g.Insert(meta)
		}
	})

	b.Run("BatchInsert100", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = g.BatchInsert(meta, 100)
		}
	})

	b.Run("ListNestedCriteria", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			q := quickdao.NewQuery().
				WhereFunc(func(c *quickdao.Criteria) {
					c.And("category").In("a", "b", "c").
						AndGroup(func(g *quickdao.Criteria) {
							g.And("price").Gt(10).Or(func(o *quickdao.Criteria) { o.And("name").StartWith("x") })
						})
				}).
				Desc("price").
				Page(2, 20)
			_, _ = g.List(meta, q)
		}
	})

	b.Run("TypedList", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			q, _ := quickdao.NewTypedQuery[BenchItem]()
			q.WhereFunc(func(c *quickdao.TypedCriteria[BenchItem]) {
				c.And(itemPrice).Between(10, 100).And(itemCategory).Ne("z")
			}).Asc(itemPrice)
			_, _ = g.List(meta, q)
		}
	})

	b.Run("GroupedCount", func(b *testing.B) {
		q := quickdao.NewQuery().
			GroupBy("category").
			HavingFunc(func(c *quickdao.Criteria) { c.And("COUNT(*)").Gt(1) })
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = g.Count(meta, q)
		}
	})
}

func BenchmarkStatementArgs(b *testing.B) {
	meta, err := quickdao.MetaOf[BenchItem]()
	if err != nil {
		b.Fatal(err)
	}
	g := quickdao.NewGenerator(quickdao.DoubleQuote, quickdao.Colon)
	stmt, err := g.BatchInsert(meta, 50)
	if err != nil {
		b.Fatal(err)
	}
	rows := make([]BenchItem, 50)
	for i := range rows {
		rows[i] = BenchItem{Name: "item", Category: "a", Price: i}
	}
	src := quickdao.BatchSource(meta, rows)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = stmt.Args(src)
	}
}
