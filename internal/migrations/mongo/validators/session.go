package validators

import "go.mongodb.org/mongo-driver/bson"

var SessionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"title",
			"type",
			"total_seats",
			"seats_taken",
			"currency",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 150,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"prep",
					"exam",
					"bundle",
				},
			},

			"level": bson.M{
				"bsonType":  "string",
				"maxLength": 50,
			},

			"campus": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"registration_opens_at": bson.M{
				"bsonType": "date",
			},

			"registration_ends_at": bson.M{
				"bsonType": "date",
			},

			"starts_at": bson.M{
				"bsonType": "date",
			},

			"ends_at": bson.M{
				"bsonType": "date",
			},

			"total_seats": bson.M{
				"bsonType": "int",
				"minimum":  0,
				"maximum":  100000,
			},

			"seats_taken": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"draft",
					"published",
					"closed",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
