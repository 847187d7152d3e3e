package sqlinline

const QInsertUpload = `--sql d09fe6cd-90b4-4ef3-a2de-30dfb7e2e35d
insert into source_uploads (ref, filename, storage_key, size_bytes, duration_s, width, height, video_kbps, audio_kbps, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`

const QSelectUpload = `--sql c95fce81-abec-40f4-9434-e29820915d28
select ref, filename, storage_key, size_bytes, duration_s, width, height, video_kbps, audio_kbps, created_at
from source_uploads
where ref = $1;
`

const QListUploadsBefore = `--sql c322c609-a35d-46cf-a0e1-b1c58018ea65
select ref, filename, storage_key, size_bytes, duration_s, width, height, video_kbps, audio_kbps, created_at
from source_uploads
where created_at < $1
order by created_at asc;
`

const QDeleteUpload = `--sql f2717cac-a673-485a-bd3d-c147b8fa3119
delete from source_uploads where ref = $1;
`
