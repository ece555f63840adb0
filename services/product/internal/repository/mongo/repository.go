package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shestoi/adminpanel/services/product/internal/repository"
)

const (
	productsCollection = "products"
	countersCollection = "counters"
	productsCounterID  = "products"
)

// productDocument представляет документ в коллекции products
type productDocument struct {
	ID        int64     `bson:"id"`
	Name      string    `bson:"name"`
	Price     int64     `bson:"price"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d productDocument) toDomain() repository.Product {
	return repository.Product{
		ID:        d.ID,
		Name:      d.Name,
		Price:     d.Price,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// counterDocument счётчик id, аналог sequence
type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Repository реализует ProductRepository используя MongoDB
type Repository struct {
	products *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// NewRepository создаёт репозиторий и уникальный индекс на id
func NewRepository(ctx context.Context, db *mongo.Database) (*Repository, error) {
	products := db.Collection(productsCollection)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := products.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("create products index: %w", err)
	}

	return &Repository{
		products: products,
		counters: db.Collection(countersCollection),
		now:      time.Now,
	}, nil
}

// reserveIDs атомарно сдвигает счётчик на n и возвращает первый id диапазона
func (r *Repository) reserveIDs(ctx context.Context, n int) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDocument
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": productsCounterID},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("reserve product ids: %w", err)
	}
	return counter.Seq - int64(n) + 1, nil
}

func (r *Repository) List(ctx context.Context) ([]repository.Product, error) {
	cur, err := r.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)

	products := make([]repository.Product, 0)
	for cur.Next(ctx) {
		var doc productDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		products = append(products, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Get возвращает ErrNotFound, если товар не найден
func (r *Repository) Get(ctx context.Context, id int64) (repository.Product, error) {
	var doc productDocument
	err := r.products.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.Product{}, repository.ErrNotFound
		}
		return repository.Product{}, err
	}
	return doc.toDomain(), nil
}

// CreateMany резервирует диапазон id одним $inc и вставляет пачку
func (r *Repository) CreateMany(ctx context.Context, products []repository.Product) ([]repository.Product, error) {
	if len(products) == 0 {
		return []repository.Product{}, nil
	}

	firstID, err := r.reserveIDs(ctx, len(products))
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	docs := make([]any, 0, len(products))
	created := make([]repository.Product, 0, len(products))
	for i, p := range products {
		doc := productDocument{
			ID:        firstID + int64(i),
			Name:      p.Name,
			Price:     p.Price,
			CreatedAt: now,
			UpdatedAt: now,
		}
		docs = append(docs, doc)
		created = append(created, doc.toDomain())
	}

	if _, err := r.products.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("insert products: %w", err)
	}
	return created, nil
}

// Update атомарно меняет name и price через FindOneAndUpdate
func (r *Repository) Update(ctx context.Context, p repository.Product) (repository.Product, error) {
	update := bson.M{
		"$set": bson.M{
			"name":       p.Name,
			"price":      p.Price,
			"updated_at": r.now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc productDocument
	err := r.products.FindOneAndUpdate(ctx, bson.M{"id": p.ID}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.Product{}, repository.ErrNotFound
		}
		return repository.Product{}, fmt.Errorf("update product: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.products.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
