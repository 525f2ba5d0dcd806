package main

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// per-user favorites: simple keyed set membership, one document per
// (user, product) pair

type favoriteDocument struct {
	UserID    string    `bson:"userId"`
	ProductID string    `bson:"productId"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (p *serviceContext) listFavorites(ctx context.Context, userID string) ([]string, error) {
	cursor, err := p.mongo.favorites.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}

	var docs []favoriteDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	favorites := []string{}

	for _, doc := range docs {
		favorites = append(favorites, doc.ProductID)
	}

	return favorites, nil
}

func (p *serviceContext) isFavorited(ctx context.Context, userID, productID string) (bool, error) {
	err := p.mongo.favorites.FindOne(ctx, bson.M{"userId": userID, "productId": productID}).Err()

	if err == nil {
		return true, nil
	}

	if err == mongo.ErrNoDocuments {
		return false, nil
	}

	return false, err
}

func (p *serviceContext) addFavorite(ctx context.Context, userID, productID string) error {
	filter := bson.M{"userId": userID, "productId": productID}

	update := bson.M{"$setOnInsert": favoriteDocument{
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
	}}

	opts := options.Update().SetUpsert(true)

	_, err := p.mongo.favorites.UpdateOne(ctx, filter, update, opts)

	return err
}

func (p *serviceContext) removeFavorite(ctx context.Context, userID, productID string) error {
	_, err := p.mongo.favorites.DeleteOne(ctx, bson.M{"userId": userID, "productId": productID})

	return err
}
