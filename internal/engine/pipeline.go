package engine

import "github.com/stockpile-io/stockpile/internal/ir"

// Logical keys of the inventory deployment.
var (
	KeyUploadsBucket  = ir.Key{Kind: ir.KindStorage, Name: "uploads"}
	KeyWebBucket      = ir.Key{Kind: ir.KindStorage, Name: "web"}
	KeyInventoryTable = ir.Key{Kind: ir.KindTable, Name: "inventory"}
	KeyLoaderFn       = ir.Key{Kind: ir.KindFunction, Name: "loader"}
	KeyAPIFn          = ir.Key{Kind: ir.KindFunction, Name: "api"}
	KeyNotifyFn       = ir.Key{Kind: ir.KindFunction, Name: "notify"}
	KeyHTTPAPI        = ir.Key{Kind: ir.KindGateway, Name: "http"}
	KeyAlertTopic     = ir.Key{Kind: ir.KindTopic, Name: "alerts"}
	KeyUploadTrigger  = ir.Key{Kind: ir.KindTrigger, Name: "uploads-to-loader"}
	KeyStreamTrigger  = ir.Key{Kind: ir.KindTrigger, Name: "stream-to-notify"}
)

// Remote names fixed by the deployed application. Suffixed resources get
// "-{runSuffix}" appended; the rest collide intentionally so reruns adopt
// what an earlier run created.
const (
	uploadsBucketPrefix = "inventory-uploads"
	webBucketPrefix     = "inventory-web"
	topicPrefix         = "NoStock"
	tableName           = "Inventory"
	loaderFnName        = "LoadInventoryFunction"
	apiFnName           = "GetInventoryApiFunction"
	notifyFnName        = "NotifyLowStockFunction"
	httpAPIName         = "InventoryAPI"
)

// Pipeline returns the resource specs of the inventory deployment. The
// DependsOn edges are the only ordering authority; execution order is
// derived by topological sort, never hard-coded.
func Pipeline() []*ir.Spec {
	return []*ir.Spec{
		{
			Key:      KeyUploadsBucket,
			BaseName: uploadsBucketPrefix,
			Suffixed: true,
		},
		{
			Key:      KeyWebBucket,
			BaseName: webBucketPrefix,
			Suffixed: true,
		},
		{
			Key:      KeyInventoryTable,
			BaseName: tableName,
			Table: &ir.TableSpec{
				PartitionKey: "store",
				SortKey:      "item",
				Stream:       true,
			},
		},
		{
			Key:       KeyLoaderFn,
			BaseName:  loaderFnName,
			DependsOn: []ir.Key{KeyInventoryTable},
			Function: &ir.FunctionSpec{
				SourceDir: "load_inventory",
				EnvFromDeps: map[string]ir.DepRef{
					"TABLE_NAME": {Key: KeyInventoryTable, Attr: ir.AttrName},
				},
			},
		},
		{
			Key:       KeyAPIFn,
			BaseName:  apiFnName,
			DependsOn: []ir.Key{KeyInventoryTable},
			Function: &ir.FunctionSpec{
				SourceDir: "get_inventory_api",
				EnvFromDeps: map[string]ir.DepRef{
					"TABLE_NAME": {Key: KeyInventoryTable, Attr: ir.AttrName},
				},
			},
		},
		{
			Key:       KeyHTTPAPI,
			BaseName:  httpAPIName,
			DependsOn: []ir.Key{KeyAPIFn},
			Gateway: &ir.GatewaySpec{
				Routes: []string{"GET /items", "GET /items/{store}"},
				Stage:  "$default",
				Target: KeyAPIFn,
			},
		},
		{
			Key:       KeyUploadTrigger,
			DependsOn: []ir.Key{KeyUploadsBucket, KeyLoaderFn},
			Trigger: &ir.TriggerSpec{
				Style:        ir.TriggerBucketNotification,
				Source:       KeyUploadsBucket,
				Target:       KeyLoaderFn,
				SuffixFilter: ".csv",
			},
		},
		{
			Key:      KeyAlertTopic,
			BaseName: topicPrefix,
			Suffixed: true,
		},
		{
			Key:       KeyNotifyFn,
			BaseName:  notifyFnName,
			DependsOn: []ir.Key{KeyAlertTopic},
			Function: &ir.FunctionSpec{
				SourceDir: "notify_low_stock",
				EnvFromDeps: map[string]ir.DepRef{
					"TOPIC_ARN": {Key: KeyAlertTopic, Attr: ir.AttrID},
				},
			},
		},
		{
			Key:       KeyStreamTrigger,
			DependsOn: []ir.Key{KeyInventoryTable, KeyNotifyFn},
			Trigger: &ir.TriggerSpec{
				Style:  ir.TriggerStreamMapping,
				Source: KeyInventoryTable,
				Target: KeyNotifyFn,
			},
		},
	}
}
