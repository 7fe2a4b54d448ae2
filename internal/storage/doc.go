/*
Package storage abstracts the remote object store that holds derived photo
tiers.

Three backends implement ObjectStore:

  - MinioStore: MinIO or any S3-compatible server (minio-go)
  - S3Store: AWS S3 through the default credential chain (aws-sdk-go-v2)
  - MemoryStore: in-process map for development and tests

Every backend returns *StoreError. Its Kind drives the upload scheduler:
KindPermissionDenied short-circuits retries and asks the user to sign in
again, KindTransient is retried.
*/
package storage
